package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/sshwatch/sshwatch/config"
)

// ValidateConfigCommand checks an HJSON config file without starting
// anything, mirroring the teacher's standalone validate command.
var ValidateConfigCommand = &cli.Command{
	Name:      "validate-config",
	Usage:     "validate a configuration file",
	UsageText: "validate-config [--config FILE]",
	Flags: []cli.Flag{
		ConfigFlag(),
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() > 0 {
			return ErrTooManyArguments
		}

		afs := afero.NewOsFs()
		path := cCtx.String("config")
		if err := validateConfigPath(afs, path); err != nil {
			return err
		}

		if _, err := config.LoadConfig(afs, path); err != nil {
			fmt.Println("\n[!] Configuration file is not valid")
			return err
		}

		fmt.Println("\n[OK] Configuration file is valid")
		return nil
	},
}
