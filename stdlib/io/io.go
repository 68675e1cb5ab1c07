// Package io registers the small set of host functions that give
// vesper's date/size formatting and REPL terminal detection a concrete
// home, backed by real third-party formatting libraries instead of
// hand-rolled ones.
package io

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"

	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
)

// Register installs this package's builtins into reg, one
// registry.BuiltinImplementation per name.
func Register(reg *registry.Registry) {
	reg.RegisterBuiltin("strftime", builtinStrftime)
	reg.RegisterBuiltin("human_bytes", builtinHumanBytes)
	reg.RegisterBuiltin("human_number", builtinHumanNumber)
	reg.RegisterBuiltin("human_time_ago", builtinHumanTimeAgo)
}

// builtinStrftime implements the C-style `strftime(format[, timestamp])`
// host function via github.com/ncruces/go-strftime.
func builtinStrftime(ctx *registry.CallContext) (*values.Value, error) {
	format := ctx.Arg(0).ToString()
	t := time.Now()
	if len(ctx.Args) > 1 && !ctx.Arg(1).IsNull() {
		t = time.Unix(ctx.Arg(1).ToInt(), 0)
	}
	out := strftime.Format(format, t)
	return values.String(out), nil
}

// builtinHumanBytes implements `human_bytes($n)`, a byte-count
// formatter (`"1.2 MB"`) backed by github.com/dustin/go-humanize, used
// by diagnostic/verbose-output paths rather than core language
// semantics.
func builtinHumanBytes(ctx *registry.CallContext) (*values.Value, error) {
	n := ctx.Arg(0).ToInt()
	if n < 0 {
		n = 0
	}
	return values.String(humanize.Bytes(uint64(n))), nil
}

// builtinHumanNumber implements `human_number($n)` (`"1,234,567"`).
func builtinHumanNumber(ctx *registry.CallContext) (*values.Value, error) {
	return values.String(humanize.Comma(ctx.Arg(0).ToInt())), nil
}

// builtinHumanTimeAgo implements `human_time_ago($timestamp)`
// (`"3 hours ago"`).
func builtinHumanTimeAgo(ctx *registry.CallContext) (*values.Value, error) {
	t := time.Unix(ctx.Arg(0).ToInt(), 0)
	return values.String(humanize.Time(t)), nil
}

// IsInteractive reports whether fd is attached to a terminal, the way
// the REPL decides whether to hand stdin to the readline
// REPL or fall back to plain batch reading of piped input.
func IsInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
