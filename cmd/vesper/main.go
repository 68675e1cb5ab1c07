// Command vesper is the CLI front end for the engine package: a PHP-
// family interpreter driven from the shell: run a file, eval an inline
// snippet, or drop into an interactive shell, built on urfave/cli/v3
// subcommands instead of one Command with a grab-bag of top-level
// flags.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/vesper-lang/vesper/engine"
	"github.com/vesper-lang/vesper/stdlib/builtins"
	"github.com/vesper-lang/vesper/stdlib/io"
	"github.com/vesper-lang/vesper/stdlib/pdo"
	"github.com/vesper-lang/vesper/version"
)

func newEngine() *engine.Engine {
	eng := engine.New()
	return eng
}

func runSource(file, source string) error {
	eng := newEngine()
	cfg := engine.DefaultConfig()
	cfg.Argv = os.Args[1:]

	script := eng.Compile(file, source, cfg)
	reg := script.Machine.Reg
	builtins.Register(reg)
	io.Register(reg)
	pdo.Register(reg)

	if script.Bag.HasErrors() {
		for _, d := range script.Bag.Diagnostics {
			fmt.Fprintln(os.Stderr, d.String())
		}
		return cli.Exit("", 1)
	}

	if err := script.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Fatal error:", err)
		return cli.Exit("", 1)
	}
	return nil
}

func main() {
	app := &cli.Command{
		Name:  "vesper",
		Usage: "An embeddable PHP-family compiler and virtual machine",
		Commands: []*cli.Command{
			runCommand,
			evalCommand,
			replCommand,
			versionCommand,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 0 {
				return runFile(cmd.Args().First())
			}
			return cli.ShowAppHelp(cmd)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return runSource(path, string(code))
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Execute a script file",
	ArgsUsage: "<file>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() == 0 {
			return cli.Exit("vesper run: missing <file>", 1)
		}
		return runFile(cmd.Args().First())
	},
}

var evalCommand = &cli.Command{
	Name:  "eval",
	Usage: "Execute an inline snippet without <?php ?> tags",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "code",
			Aliases:  []string{"r"},
			Usage:    "the code to run",
			Required: true,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runSource("-", "<?php "+cmd.String("code"))
	},
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print the vesper version",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		fmt.Println(version.String())
		return nil
	},
}
