package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/sshwatch/sshwatch/query"
	"github.com/sshwatch/sshwatch/viewer"
)

// ViewCommand opens the interactive terminal UI against an existing cache,
// optionally alongside a `watch` process already tailing into it.
var ViewCommand = &cli.Command{
	Name:      "view",
	Usage:     "browse the cache in an interactive terminal UI",
	UsageText: "view [--config FILE]",
	Flags: []cli.Flag{
		ConfigFlag(),
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

		eng, store, historian, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		// Bootstrap realtime state and run any pending import, but never
		// start the tailer/poller loop here: `view` only reads.
		if err := eng.Start(context.Background()); err != nil {
			return err
		}

		svc := query.New(store, eng, cfg, historian)
		return viewer.CreateUI(svc)
	},
}
