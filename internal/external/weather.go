package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"superiorweather/internal/types"
)

// DefaultWeatherBaseURL is the Visual Crossing Timeline API root.
const DefaultWeatherBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

// maxWeatherBody bounds how much of a weather response is read.
const maxWeatherBody = 1 << 20

// WeatherClientConfig configures a WeatherClient.
type WeatherClientConfig struct {
	BaseURL   string
	APIKey    types.SecretString
	UnitGroup string
}

// WeatherClient fetches current conditions and the hourly forecast from the
// Visual Crossing Timeline API and maps them onto types.Snapshot.
type WeatherClient struct {
	base      *BaseClient
	baseURL   string
	apiKey    types.SecretString
	unitGroup string
	clock     types.Clock
}

// NewWeatherClient creates a WeatherClient on top of base.
func NewWeatherClient(base *BaseClient, cfg WeatherClientConfig) *WeatherClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWeatherBaseURL
	}
	if cfg.UnitGroup == "" {
		cfg.UnitGroup = "us"
	}
	return &WeatherClient{
		base:      base,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		unitGroup: cfg.UnitGroup,
		clock:     types.RealClock{},
	}
}

// timelineResponse is the subset of the Timeline API payload we consume.
// Pointer fields distinguish null from zero.
type timelineResponse struct {
	ResolvedAddress   string             `json:"resolvedAddress"`
	CurrentConditions *currentConditions `json:"currentConditions"`
	Days              []timelineDay      `json:"days"`
}

type timelineDay struct {
	Hours []timelineHour `json:"hours"`
}

type timelineHour struct {
	Datetime      string   `json:"datetime"`
	DatetimeEpoch int64    `json:"datetimeEpoch"`
	Temp          *float64 `json:"temp"`
	Conditions    string   `json:"conditions"`
	PrecipProb    *float64 `json:"precipprob"`
}

type currentConditions struct {
	Temp          *float64 `json:"temp"`
	FeelsLike     *float64 `json:"feelslike"`
	Conditions    string   `json:"conditions"`
	PrecipProb    *float64 `json:"precipprob"`
	WindSpeed     *float64 `json:"windspeed"`
	Humidity      *float64 `json:"humidity"`
	Visibility    *float64 `json:"visibility"`
	UVIndex       *float64 `json:"uvindex"`
	DatetimeEpoch int64    `json:"datetimeEpoch"`
}

// Current fetches the current conditions at loc. Upstream failures are
// returned as AppErrors with upstream codes; nothing is retried.
func (c *WeatherClient) Current(ctx context.Context, loc types.Location) (types.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.timelineURL(loc), nil)
	if err != nil {
		return types.Snapshot{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return types.Snapshot{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherBody))
	if err != nil {
		return types.Snapshot{}, types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to read weather response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.Snapshot{}, types.NewAppError(types.ErrCodeUpstreamWeatherAPIKey, "weather API rejected the API key", nil)
	case resp.StatusCode >= 300:
		return types.Snapshot{}, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("weather API returned %d: %s", resp.StatusCode, truncate(body)),
			nil,
		)
	}

	var tr timelineResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return types.Snapshot{}, types.NewAppError(types.ErrCodeUpstreamForecast, "weather response is not valid JSON", err)
	}
	if tr.CurrentConditions == nil {
		return types.Snapshot{}, types.NewAppError(types.ErrCodeUpstreamForecast, "weather response has no current conditions", nil)
	}

	cc := tr.CurrentConditions
	observed := c.clock.Now().UTC()
	if cc.DatetimeEpoch > 0 {
		observed = time.Unix(cc.DatetimeEpoch, 0).UTC()
	}
	if loc.Label == "" {
		loc.Label = tr.ResolvedAddress
	}

	return types.Snapshot{
		Temperature:       orMissing(cc.Temp),
		FeelsLike:         orMissing(cc.FeelsLike),
		Conditions:        cc.Conditions,
		PrecipProbability: orMissing(cc.PrecipProb),
		WindSpeed:         orMissing(cc.WindSpeed),
		Humidity:          orMissing(cc.Humidity),
		Visibility:        orMissing(cc.Visibility),
		UVIndex:           orMissing(cc.UVIndex),
		ObservedAt:        observed,
		Location:          loc,
		Hourly:            hourlyForecast(tr.Days),
	}, nil
}

// hourlyForecast flattens the day buckets and keeps the first
// types.ForecastHours entries.
func hourlyForecast(days []timelineDay) []types.HourlyForecast {
	out := make([]types.HourlyForecast, 0, types.ForecastHours)
	for _, d := range days {
		for _, h := range d.Hours {
			if len(out) == types.ForecastHours {
				return out
			}
			var at time.Time
			if h.DatetimeEpoch > 0 {
				at = time.Unix(h.DatetimeEpoch, 0).UTC()
			}
			out = append(out, types.HourlyForecast{
				Time:              at,
				LocalTime:         h.Datetime,
				Temperature:       orMissing(h.Temp),
				Conditions:        h.Conditions,
				PrecipProbability: orMissing(h.PrecipProb),
			})
		}
	}
	return out
}

// timelineURL builds {base}/{lat},{lon}?key=..&unitGroup=..&include=current,hours
// with coordinates fixed to six decimals.
func (c *WeatherClient) timelineURL(loc types.Location) string {
	coords := strconv.FormatFloat(loc.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(loc.Longitude, 'f', 6, 64)
	q := url.Values{}
	q.Set("key", c.apiKey.Unmask())
	q.Set("unitGroup", c.unitGroup)
	q.Set("include", "current,hours")
	return c.baseURL + "/" + coords + "?" + q.Encode()
}

func orMissing(v *float64) float64 {
	if v == nil {
		return types.Missing
	}
	return *v
}

func truncate(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
