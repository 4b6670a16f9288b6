// Package cli is the ipwatch command line: one change-detection run by
// default, plus diagnostic subcommands and an MCP server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/config"
	"github.com/R167/ipwatch/internal/logging"
	"github.com/R167/ipwatch/internal/output"
)

var Version = "dev"

const configEnvVar = "IPWATCH_CONFIG"

// NewApp builds the command tree. Program output goes to stdout and
// diagnostics to stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "ipwatch",
		Usage:     "detect external IP address changes and report them",
		Version:   Version,
		ArgsUsage: "<config>",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     commonFlags(),
		Action:    checkAction,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Aliases:   []string{"c"},
				Usage:     "Resolve the external IP, compare it with the saved one and report a change.",
				ArgsUsage: "<config>",
				Flags:     commonFlags(),
				Action:    checkAction,
			},
			{
				Name:      "test",
				Aliases:   []string{"t"},
				Usage:     "Query every echo server once and show how many agree.",
				ArgsUsage: "<config>",
				Flags:     commonFlags(),
				Action:    testAction,
			},
			{
				Name:      "servers",
				Aliases:   []string{"s", "ls"},
				Usage:     "List the echo server pool and when it expires.",
				ArgsUsage: "<config>",
				Flags:     commonFlags(),
				Action:    serversAction,
			},
			{
				Name:      "mcp",
				Usage:     "Serve the resolve and test operations over MCP on stdio.",
				ArgsUsage: "<config>",
				Flags:     commonFlags(),
				Action:    mcpAction,
			},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration file",
			EnvVars: []string{configEnvVar},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "print debug output and diagnostics",
		},
	}
}

// Run executes the app with args and cancels blocking work when ctx is done.
func Run(ctx context.Context, args []string) error {
	return NewApp(os.Stdout, os.Stderr).RunContext(ctx, args)
}

func configPath(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}
	for _, ctx := range c.Lineage() {
		if p := ctx.String("config"); p != "" {
			return p, nil
		}
	}
	return "", cli.Exit(fmt.Sprintf("missing configuration file (argument or %s)", configEnvVar), 1)
}

// loadConfig reads the config and sets up logging and debug output from it.
func loadConfig(c *cli.Context) (config.Config, error) {
	path, err := configPath(c)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, cli.Exit(fmt.Sprintf("ERROR: %v", err), 1)
	}

	level := cfg.LogLevel
	if debugEnabled(c) {
		level = "debug"
		common.SetDebugMode(true)
	}
	logging.Setup(c.App.ErrWriter, level)
	log.Debug().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}

// debugEnabled accepts --debug before or after the subcommand name.
func debugEnabled(c *cli.Context) bool {
	for _, ctx := range c.Lineage() {
		if ctx.Bool("debug") {
			return true
		}
	}
	return false
}

func streamingOutput(c *cli.Context) output.Output {
	return output.NewStreamingOutput(c.App.Writer)
}

func checkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out := streamingOutput(c)
	out.Debug("%s", cfg.String())

	res, err := newComponents(cfg, out).detector().Run(c.Context)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return cli.Exit("interrupted", 1)
		}
		return cli.Exit(fmt.Sprintf("ERROR: %v", err), 1)
	}
	log.Info().Stringer("state", res.State).Str("old", res.Old.IP).Str("new", res.New.IP).Msg("check finished")
	return nil
}

func testAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out := streamingOutput(c)
	comp := newComponents(cfg, out)

	pool, err := comp.catalog.Servers(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ERROR: %v", err), 1)
	}
	comp.resolver.Survey(c.Context, pool.Servers)
	return nil
}

func serversAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out := streamingOutput(c)
	comp := newComponents(cfg, out)

	pool, err := comp.catalog.Servers(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ERROR: %v", err), 1)
	}

	out.Header("Echo servers")
	if pool.Empty() {
		out.Warning("No servers available from %s", cfg.ServerListURL)
		return nil
	}
	source := "downloaded from " + cfg.ServerListURL
	if pool.FromCache {
		source = "cached in " + cfg.ServerCachePath
	}
	out.Info("%d servers, %s", len(pool.Servers), source)
	if pool.ExpiryDisplay != "" {
		out.Info("Expires: %s", pool.ExpiryDisplay)
	}
	for _, s := range pool.Servers {
		out.Detail("%s", s)
	}
	return nil
}

func mcpAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return serveMCP(c.Context, cfg)
}
