// Package config loads and validates sshwatch's runtime configuration.
package config

import (
	"fmt"

	hjson "github.com/hjson/hjson-go/v4"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

// Version is populated by build flags with the current git tag.
var Version string

// Config holds every entry from spec.md §6, plus the ambient commit-interval
// knob used by the cache store (SPEC_FULL.md §10.2).
type Config struct {
	AuthLog  string `hjson:"auth_log"  validate:"required"`
	F2BLog   string `hjson:"f2b_log"   validate:"required"`
	F2BSqlite string `hjson:"f2b_sqlite"`

	Jail      string `hjson:"jail"`
	ShowOK    bool   `hjson:"show_ok"`
	PollBans  bool   `hjson:"poll_bans"`
	PollInterval float64 `hjson:"poll_interval" validate:"gt=0"`

	CachePath string `hjson:"cache_path" validate:"required"`

	SubnetPrefix       int `hjson:"subnet_prefix" validate:"subnet_prefix"`
	BootstrapFromCache int `hjson:"bootstrap_from_cache" validate:"gte=0"`
	ImportOnStart      bool `hjson:"import_on_start"`

	ASNEnable          bool    `hjson:"asn_enable"`
	ASNRefreshInterval float64 `hjson:"asn_refresh_interval" validate:"gt=0"`
	ASNCacheTTL        int64   `hjson:"asn_cache_ttl" validate:"gt=0"`
	ASNBatch           int     `hjson:"asn_batch" validate:"gt=0"`
	ASNTimeout         float64 `hjson:"asn_timeout" validate:"gt=0"`
	CymruHost          string  `hjson:"cymru_host" validate:"required"`

	TopSubnets     int     `hjson:"top_subnets" validate:"gt=0"`
	CommitInterval float64 `hjson:"commit_interval" validate:"gt=0"`
}

// GetDefaultConfig returns the defaults enumerated in spec.md §6 /
// SPEC_FULL.md §10.2.
func GetDefaultConfig() Config {
	return Config{
		AuthLog:            "/var/log/auth.log",
		F2BLog:             "/var/log/fail2ban.log",
		F2BSqlite:          "/var/lib/fail2ban/fail2ban.sqlite3",
		Jail:               "",
		ShowOK:             false,
		PollBans:           false,
		PollInterval:       2.0,
		CachePath:          "./sshwatch_cache.db",
		SubnetPrefix:       24,
		BootstrapFromCache: 100,
		ImportOnStart:      true,
		ASNEnable:          true,
		ASNRefreshInterval: 10.0,
		ASNCacheTTL:        86400,
		ASNBatch:           20,
		ASNTimeout:         4.0,
		CymruHost:          "whois.cymru.com",
		TopSubnets:         10,
		CommitInterval:     0.8,
	}
}

// registerSubnetPrefix validates that the field value is one of
// constants.AllowedSubnetPrefixes (8, 16, 24, 32), matching the teacher's
// pattern of a custom validator.RegisterValidation rule in config/config.go.
func registerSubnetPrefix(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	for _, p := range []int64{8, 16, 24, 32} {
		if v == p {
			return true
		}
	}
	return false
}

// Validate runs struct-tag validation over cfg, including the custom
// subnet_prefix rule.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.RegisterValidation("subnet_prefix", registerSubnetPrefix); err != nil {
		return fmt.Errorf("error registering subnet_prefix validator: %w", err)
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig reads an HJSON file at path through afs (an afero.Fs, so tests
// can substitute afero.NewMemMapFs), overlays it onto the defaults, and
// validates the result. Adapted from activecm-rita's config.LoadConfig.
func LoadConfig(afs afero.Fs, path string) (Config, error) {
	cfg := GetDefaultConfig()

	raw, err := afero.ReadFile(afs, path)
	if err != nil {
		return cfg, fmt.Errorf("error reading config file %q: %w", path, err)
	}

	if err := hjson.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
