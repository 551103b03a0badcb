// Command ember is the CLI entry point wiring internal/lexer,
// internal/parser, internal/compiler and internal/vm into the §6.4
// collaborator contract: lex, parse, compile, then vm.VM.StartModule.
// The command surface is a small github.com/urfave/cli/v3 Command tree
// with a default Action that falls back to an interactive REPL.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"ember/internal/compiler"
	"ember/internal/concurrency"
	"ember/internal/lexer"
	"ember/internal/parser"
	"ember/internal/repl"
	"ember/internal/stdlib/db"
	"ember/internal/stdlib/netws"
	"ember/internal/vm"
)

// bootstrap registers every native stdlib module a script may import:
// sync (mutex/semaphore), db (sqlite3) and net (websocket client).
func bootstrap(v *vm.VM) {
	concurrency.Register(v)
	db.Register(v)
	netws.Register(v)
}

func main() {
	app := &cli.Command{
		Name:  "ember",
		Usage: "run and explore Ember scripts",
		Commands: []*cli.Command{
			runCommand(),
			replCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 0 {
				return runFile(cmd.Args().Get(0))
			}
			return runREPL()
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ember:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "compile and run a script file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("run requires a file argument")
			}
			return runFile(cmd.Args().Get(0))
		},
	}
}

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "start an interactive session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runREPL()
		},
	}
}

func runFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	toks := lexer.NewScannerWithFile(string(src), path).ScanTokens()
	mod, err := parser.NewParser(toks).ParseModule(path)
	if err != nil {
		return err
	}

	v := vm.New(vm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	bootstrap(v)

	cmp := compiler.New(v.Heap())
	cd, err := cmp.CompileModule(mod)
	if err != nil {
		return err
	}
	cd.ModuleName = path

	_, err = v.StartModule(cd)
	return err
}

func runREPL() error {
	v := vm.New()
	bootstrap(v)
	r, err := repl.New(v, os.Stdout)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Run()
}
