package config

// Build metadata, set with -ldflags "-X github.com/edirooss/camwall/internal/config.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)
