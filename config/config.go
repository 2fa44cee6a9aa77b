// Package config holds the core's process-wide static defaults, loaded
// with github.com/spf13/viper the way OpenIM's pkg/common/config loads
// YAML into a typed struct. Per-account settings are a dynamically typed
// map and are deliberately not part of this package.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Defaults is the process-wide configuration surface.
type Defaults struct {
	BOSH    BOSHDefaults    `mapstructure:"bosh"`
	SCRAM   SCRAMDefaults   `mapstructure:"scram"`
	Metrics MetricsDefaults `mapstructure:"metrics"`
}

// BOSHDefaults configures the BOSH transport when an account doesn't
// override them via its settings map.
type BOSHDefaults struct {
	Wait                 int           `mapstructure:"wait"`
	Hold                 int           `mapstructure:"hold"`
	SendDelay            time.Duration `mapstructure:"send_delay"`
	InactivityMargin     time.Duration `mapstructure:"inactivity_margin"`
	MaxInactivitySeconds int           `mapstructure:"max_inactivity_seconds"`
}

// SCRAMDefaults configures the SCRAM mechanism's fallback iteration
// count, used only if a server omits "i" from its challenge in a way
// that would otherwise leave the client with nothing to try.
type SCRAMDefaults struct {
	MinIterations int `mapstructure:"min_iterations"`
}

// MetricsDefaults toggles the metrics package's registration of its
// Prometheus collectors.
type MetricsDefaults struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the built-in defaults, matching the constants bosh.c
// and auth_scram.c hard-code.
func Default() Defaults {
	return Defaults{
		BOSH: BOSHDefaults{
			Wait:                 10,
			Hold:                 1,
			SendDelay:            250 * time.Millisecond,
			InactivityMargin:     5 * time.Second,
			MaxInactivitySeconds: 3600,
		},
		SCRAM: SCRAMDefaults{
			MinIterations: 4096,
		},
		Metrics: MetricsDefaults{
			Enabled: true,
		},
	}
}

// Load reads defaults from path (any format viper supports: yaml, json,
// toml) layered over Default(), the same "defaults then override" idiom
// OpenIM's config loader uses. A missing file is not an error — Default()
// alone is returned.
func Load(path string) (Defaults, error) {
	d := Default()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return d, nil
		}
		return d, err
	}

	if err := v.Unmarshal(&d); err != nil {
		return d, err
	}
	return d, nil
}
