package config

// Linker-injected build metadata variables. These are set at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X superiorweather/internal/config.version=1.2.3 \
//	    -X superiorweather/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X superiorweather/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Default values are used during local development when ldflags are not set.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// productName prefixes the User-Agent sent to the weather provider.
const productName = "SuperiorWeather"

// NewBuildInfo reads the linker-injected variables. LoadConfig calls it once.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// UserAgent identifies this build to upstream APIs, e.g.
// "SuperiorWeather/1.2.3 (abc1234)". The commit is omitted when unknown.
func (b BuildInfo) UserAgent() string {
	v := b.Version
	if v == "" {
		v = "dev"
	}
	if b.Commit == "" || b.Commit == "none" {
		return productName + "/" + v
	}
	return productName + "/" + v + " (" + b.Commit + ")"
}
