package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/geminid/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "geminid",
		Usage:   "Gemini protocol server",
		Version: buildinfo.String(),
		Flags:   append(globalFlags(), serveFlags()...),
		Action:  runServe,
		Commands: []*cli.Command{
			ServeCommand(),
			ConfigCommand(),
		},
	}
}

// globalFlags returns the flags available to every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"GEMINID_CONFIG"},
		},
	}
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
