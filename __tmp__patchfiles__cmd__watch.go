package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/sshwatch/sshwatch/cache"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/engine"
	"github.com/sshwatch/sshwatch/importer"
	"github.com/sshwatch/sshwatch/logger"
	"github.com/sshwatch/sshwatch/tailer"
	"github.com/sshwatch/sshwatch/whois"
)

// WatchCommand runs the log tailers, enrichment scheduler, and jail poller
// in the foreground until interrupted (SPEC_FULL.md §12's CLI surface).
var WatchCommand = &cli.Command{
	Name:      "watch",
	Usage:     "tail auth/fail2ban logs and maintain the cache",
	UsageText: "watch [--config FILE] [flags...]",
	Flags: []cli.Flag{
		ConfigFlag(),
		&cli.StringFlag{Name: "auth-log", Usage: "path to the sshd auth log"},
		&cli.StringFlag{Name: "f2b-log", Usage: "path to the fail2ban log"},
		&cli.StringFlag{Name: "f2b-sqlite", Usage: "path to fail2ban's persistent sqlite database"},
		&cli.StringFlag{Name: "jail", Usage: "fail2ban jail name to poll for ban status"},
		&cli.BoolFlag{Name: "show-ok", Usage: "count successful logins as well as failures"},
		&cli.BoolFlag{Name: "poll-bans", Usage: "poll fail2ban-client status for authoritative ban state"},
		&cli.Float64Flag{Name: "poll-interval", Usage: "seconds between fail2ban-client polls"},
		&cli.StringFlag{Name: "cache-path", Usage: "path to sshwatch's sqlite cache file"},
		&cli.IntFlag{Name: "subnet-prefix", Usage: "CIDR prefix length for subnet aggregation (8, 16, 24, or 32)"},
		&cli.IntFlag{Name: "bootstrap-from-cache", Usage: "number of recent IPs to seed realtime counters from on startup"},
		&cli.BoolFlag{Name: "import-on-start", Usage: "import fail2ban's historical ban database on startup"},
		&cli.BoolFlag{Name: "asn-enable", Usage: "enable WHOIS ASN enrichment"},
		&cli.Float64Flag{Name: "asn-refresh-interval", Usage: "minimum seconds between WHOIS refresh batches"},
		&cli.Int64Flag{Name: "asn-cache-ttl", Usage: "seconds an ASN lookup stays fresh before re-refresh"},
		&cli.IntFlag{Name: "asn-batch", Usage: "number of IPs refreshed per WHOIS batch"},
		&cli.Float64Flag{Name: "asn-timeout", Usage: "seconds before a WHOIS bulk lookup times out"},
		&cli.StringFlag{Name: "cymru-host", Usage: "Team Cymru bulk WHOIS host (queried on port 43)"},
		&cli.IntFlag{Name: "top-subnets", Usage: "number of top subnets to track"},
		&cli.Float64Flag{Name: "commit-interval", Usage: "seconds between cache commits"},
		&cli.Float64Flag{Name: "tick-interval", Value: 1.0, Usage: "seconds between engine loop iterations"},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() > 0 {
			return ErrTooManyArguments
		}

		afs := afero.NewOsFs()
		cfg, err := loadAndOverlayConfig(afs, cCtx)
		if err != nil {
			return err
		}

		return runWatch(cfg, cCtx.Float64("tick-interval"))
	},
}

// loadAndOverlayConfig loads the HJSON file at --config (if present) and
// then overlays any explicitly-set CLI flags on top of it, the CLI flag
// winning — the teacher's config-then-flag-override precedence.
func loadAndOverlayConfig(afs afero.Fs, cCtx *cli.Context) (config.Config, error) {
	cfg := config.GetDefaultConfig()

	path := cCtx.String("config")
	if path != "" {
		if err := validateConfigPath(afs, path); err == nil {
			loaded, err := config.LoadConfig(afs, path)
			if err != nil {
				return cfg, err
			}
			cfg = loaded
		}
	}

	if cCtx.IsSet("auth-log") {
		cfg.AuthLog = cCtx.String("auth-log")
	}
	if cCtx.IsSet("f2b-log") {
		cfg.F2BLog = cCtx.String("f2b-log")
	}
	if cCtx.IsSet("f2b-sqlite") {
		cfg.F2BSqlite = cCtx.String("f2b-sqlite")
	}
	if cCtx.IsSet("jail") {
		cfg.Jail = cCtx.String("jail")
	}
	if cCtx.IsSet("show-ok") {
		cfg.ShowOK = cCtx.Bool("show-ok")
	}
	if cCtx.IsSet("poll-bans") {
		cfg.PollBans = cCtx.Bool("poll-bans")
	}
	if cCtx.IsSet("poll-interval") {
		cfg.PollInterval = cCtx.Float64("poll-interval")
	}
	if cCtx.IsSet("cache-path") {
		cfg.CachePath = cCtx.String("cache-path")
	}
	if cCtx.IsSet("subnet-prefix") {
		cfg.SubnetPrefix = cCtx.Int("subnet-prefix")
	}
	if cCtx.Is