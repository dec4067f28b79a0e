package core

import (
	"fmt"
	"strings"
	"time"

	"superiorweather/internal/config"
	"superiorweather/internal/types"
)

// PolicyFromConfig builds a Policy from the notification settings. Titles
// keep their defaults.
func PolicyFromConfig(n config.NotificationConfig) (Policy, error) {
	p := DefaultPolicy()
	p.Channel = n.Channel
	p.MorningRepeat = types.Repeat(n.MorningRepeat)
	p.AlertStagger = n.AlertStagger

	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return Policy{}, fmt.Errorf("timezone %q: %w", n.Timezone, err)
	}
	p.Location = loc

	if p.MorningTime, err = ParseTimeOfDay(n.MorningTime); err != nil {
		return Policy{}, err
	}

	p.DetailTimes = make([]TimeOfDay, 0, len(n.DetailTimes))
	for _, s := range n.DetailTimes {
		t, err := ParseTimeOfDay(strings.TrimSpace(s))
		if err != nil {
			return Policy{}, err
		}
		p.DetailTimes = append(p.DetailTimes, t)
	}
	return p, nil
}
