// Package main is the navbench command itself.
package main

import (
	"os"

	"go.viam.com/navbench/cli"
	"go.viam.com/navbench/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.Global().Error(err)
		os.Exit(1)
	}
}
