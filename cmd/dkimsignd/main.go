/*
dkimsignd - DKIM signing oracle daemon.
Copyright © 2026 dkimsignd contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dkimsignd/dkimsignd/internal/app"
	"github.com/dkimsignd/dkimsignd/internal/daemon"
)

func main() {
	cliApp := &cli.App{
		Name:  "dkimsignd",
		Usage: "DKIM signing oracle daemon",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file to use",
				EnvVars: []string{"DKIMSIGND_CONFIG"},
				Value:   "/etc/dkimsignd/dkimsignd.conf",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Force debug-level logging regardless of log_level",
			},
			&cli.BoolFlag{
				Name:  "foreground",
				Usage: "Log to stderr instead of syslog",
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := app.LoadConfig(ctx.Path("config"), ctx.Bool("debug"), ctx.Bool("foreground"))
	if err != nil {
		return err
	}

	h := &daemon.Harness{
		Settings:   cfg.Settings,
		Log:        cfg.Log,
		Dispatcher: cfg.Dispatcher,
	}
	return h.Run()
}
