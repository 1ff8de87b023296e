// Package config resolves the small set of safety limits the decoder
// enforces while walking an untrusted .blend file, following a viper-backed
// override pattern: built-in defaults, overridable by an optional config
// file, overridable again by environment variables.
package config

import "github.com/spf13/viper"

// Limits bounds the work a single Open call will do, independent of what
// the file itself claims. They exist to keep a malformed or adversarial
// file from driving the decoder into unbounded memory or stack use.
type Limits struct {
	// MaxBlocks caps the number of block headers the scanner will index
	// before giving up on the rest of the file as if it had hit EOF.
	MaxBlocks int
	// MaxDepth caps nested struct/array recursion during materialization.
	MaxDepth int
	// LogLevel is a logrus level name, resolved like the other limits. The
	// decoder does not read it: diagnostics are always emitted at Warn
	// level on the configured logger.
	LogLevel string
}

// DefaultLimits returns the limits used when no override is supplied.
func DefaultLimits() Limits {
	return Limits{
		MaxBlocks: 2_000_000,
		MaxDepth:  64,
		LogLevel:  "warn",
	}
}

// Load resolves Limits from, in increasing priority: built-in defaults, an
// optional config file (ini/yaml/toml/json, whatever viper's codecs
// recognize from its extension), and BLEND_-prefixed environment
// variables. A missing or unreadable configFile is not an error; it simply
// leaves the defaults (and any env overrides) in place.
func Load(configFile string) Limits {
	v := viper.New()
	v.SetEnvPrefix("BLEND")
	v.AutomaticEnv()

	defaults := DefaultLimits()
	v.SetDefault("max_blocks", defaults.MaxBlocks)
	v.SetDefault("max_depth", defaults.MaxDepth)
	v.SetDefault("log_level", defaults.LogLevel)

	if configFile != "" {
		v.SetConfigFile(configFile)
		_ = v.ReadInConfig()
	}

	return Limits{
		MaxBlocks: v.GetInt("max_blocks"),
		MaxDepth:  v.GetInt("max_depth"),
		LogLevel:  v.GetString("log_level"),
	}
}
