// Package cmd wires sshwatch's urfave/cli commands.
package cmd

import (
	"errors"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/sshwatch/sshwatch/util"
)

var ErrMissingConfigPath = errors.New("config path parameter is required")
var ErrTooManyArguments = errors.New("too many arguments provided")

// Commands returns the CLI's top-level command set.
func Commands() []*cli.Command {
	return []*cli.Command{
		WatchCommand,
		ViewCommand,
		ValidateConfigCommand,
	}
}

// ConfigFlag is the shared --config/-c flag every command accepts.
func ConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Load configuration from `FILE`",
		Value:   "./sshwatch.hjson",
	}
}

func validateConfigPath(afs afero.Fs, path string) error {
	if path == "" {
		return ErrMissingConfigPath
	}
	return util.ValidateFile(afs, path)
}
