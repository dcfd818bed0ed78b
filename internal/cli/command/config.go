package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/geminid/internal/cli/output"
	"github.com/yndnr/geminid/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	outputFlag := &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: table, json, yaml",
		Value:   "table",
	}

	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "Load and verify the configuration, then print it with secrets masked",
				Flags:  append(append(globalFlags(), serveFlags()...), outputFlag),
				Action: configCheck,
			},
			{
				Name:   "defaults",
				Usage:  "Print the built-in defaults",
				Flags:  []cli.Flag{outputFlag},
				Action: configDefaults,
			},
		},
	}
}

func configCheck(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	cfg, loader, err := loadConfig(c)
	if err != nil {
		return err
	}

	if format == output.FormatTable {
		source := loader.FilePath()
		if source == "" {
			source = "(defaults, environment and flags only)"
		}
		fmt.Fprintf(c.App.Writer, "configuration OK: %s\n\n", source)
	}
	return printConfig(c, format, config.Sanitize(cfg))
}

func configDefaults(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return printConfig(c, format, config.Default())
}

func printConfig(c *cli.Context, format output.Format, cfg *config.ServerConfig) error {
	var data any = config.ToMap(cfg)
	if format == output.FormatTable {
		data = config.Flatten(cfg)
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}
