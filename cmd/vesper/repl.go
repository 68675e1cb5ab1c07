package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/vesper-lang/vesper/engine"
	vesperErrors "github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/stdlib/builtins"
	vio "github.com/vesper-lang/vesper/stdlib/io"
	"github.com/vesper-lang/vesper/stdlib/pdo"
)

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "Start an interactive shell",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runRepl()
	},
}

// needsMoreInput is a shallow brace/paren/bracket and quote-depth check
// used to decide whether the REPL should keep accumulating lines before
// handing a statement to the compiler.
func needsMoreInput(buf string) bool {
	depth := 0
	inSingle, inDouble := false, false
	escaped := false
	for _, r := range buf {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inSingle:
			if r == '\\' {
				escaped = true
			} else if r == '\'' {
				inSingle = false
			}
		case inDouble:
			if r == '\\' {
				escaped = true
			} else if r == '"' {
				inDouble = false
			}
		case r == '\'':
			inSingle = true
		case r == '"':
			inDouble = true
		case r == '{' || r == '(' || r == '[':
			depth++
		case r == '}' || r == ')' || r == ']':
			depth--
		}
	}
	return depth > 0 || inSingle || inDouble
}

// runRepl drives the interactive shell: github.com/chzyer/readline gives
// line editing and history when stdin is a real terminal (gated by
// stdlib/io.IsInteractive); piped input falls back to a
// plain stdin reader so scripted/CI invocations of `vesper repl` still
// work without a TTY.
func runRepl() error {
	eng := engine.New()

	fmt.Println("vesper interactive shell. Type 'exit' or 'quit' to leave.")

	if !vio.IsInteractive(os.Stdin.Fd()) {
		return runReplPiped(eng)
	}

	rl, err := readline.New("vesper> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	var buf strings.Builder
	for {
		prompt := "vesper> "
		if buf.Len() > 0 {
			prompt = "     -> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				buf.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Println("Bye!")
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && (trimmed == "exit" || trimmed == "quit" || trimmed == "exit()" || trimmed == "quit()") {
			fmt.Println("Bye!")
			return nil
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		if needsMoreInput(buf.String()) {
			continue
		}
		evalReplChunk(eng, buf.String())
		buf.Reset()
	}
}

// runReplPiped is the non-interactive fallback: it never echoes a
// prompt and reads the whole of stdin as one program, matching how a
// piped `vesper repl < script.php` invocation should behave.
func runReplPiped(eng *engine.Engine) error {
	code, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	evalReplChunk(eng, string(code))
	return nil
}

// evalReplChunk compiles and runs one accumulated statement/program
// against a fresh Script each time (the REPL does not persist variables
// or declarations across statements in this release; each line is an
// independent top-level program), reporting diagnostics to stderr and
// uncaught exceptions without killing the shell loop.
func evalReplChunk(eng *engine.Engine, code string) {
	src := code
	if !strings.HasPrefix(strings.TrimSpace(src), "<?") {
		src = "<?php " + src
	}
	cfg := engine.DefaultConfig()
	cfg.Argv = os.Args[1:]

	script := eng.Compile("repl", src, cfg)
	builtins.Register(script.Machine.Reg)
	vio.Register(script.Machine.Reg)
	pdo.Register(script.Machine.Reg)

	for _, d := range script.Bag.Diagnostics {
		if d.Kind >= vesperErrors.KindError {
			fmt.Fprintln(os.Stderr, d.String())
		}
	}
	if script.Bag.HasErrors() {
		return
	}
	if err := script.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Fatal error:", err)
	}
}
