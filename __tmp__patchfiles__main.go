package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sshwatch/sshwatch/cmd"
	"github.com/sshwatch/sshwatch/config"
	"github.com/sshwatch/sshwatch/logger"
)

// Version is populated by build flags with the current git tag.
var Version string

func main() {
	config.Version = Version

	app := &cli.App{
		EnableBashCompletion: true,
		Commands:             cmd.Commands(),
		Name:                 "sshwatch",
		Usage:                "watch SSH auth logs and fail2ban jail activity from a terminal",
		UsageText:            "sshwatch [-d] command [command options]",
		Version:              Version,
		ExitErrHandler:       exitErrHandler,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "run in debug mode",
			},
		},
		Before: func(cCtx *cli.Context) error {
			logger.DebugMode = os.Getenv("APP_ENV") == "dev"
			if cCtx.Bool("debug") {
				logger.DebugMode = true
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.GetLogger().Fatal().Err(err).Send()
	}
}

// exitErrHandler implements cli.ExitErrHandlerFunc.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(c.App.ErrWriter, "\n[!] %+v\n", err.Error())
	cli.OsExiter(1)
}


