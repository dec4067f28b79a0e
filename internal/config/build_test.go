package config

import "testing"

func TestNewBuildInfo_LocalDefaults(t *testing.T) {
	info := NewBuildInfo()
	if info.Version != "dev" || info.Commit != "none" || info.BuildTime != "unknown" {
		t.Errorf("unexpected defaults without ldflags: %+v", info)
	}
}

func TestBuildInfo_UserAgent(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{"local build", NewBuildInfo(), "SuperiorWeather/dev"},
		{"release", BuildInfo{Version: "1.4.0", Commit: "9f2c1ab"}, "SuperiorWeather/1.4.0 (9f2c1ab)"},
		{"release without commit", BuildInfo{Version: "1.4.0"}, "SuperiorWeather/1.4.0"},
		{"zero value", BuildInfo{}, "SuperiorWeather/dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.UserAgent(); got != tt.want {
				t.Errorf("UserAgent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_PopulatesBuild(t *testing.T) {
	setMinimalTestEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Build != NewBuildInfo() {
		t.Errorf("Build = %+v, want linker values %+v", cfg.Build, NewBuildInfo())
	}
}
