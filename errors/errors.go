// Package errors classifies and formats compile-time and run-time
// diagnostics: notices, deprecations, warnings, parse errors, errors,
// and fatal errors, each rendered as "<file>: <line> <kind>: <message>".
package errors

import "fmt"

// Kind classifies one diagnostic.
type Kind int

const (
	KindNotice Kind = iota
	KindDeprecated
	KindWarning
	KindParse
	KindError
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNotice:
		return "Notice"
	case KindDeprecated:
		return "Deprecated"
	case KindWarning:
		return "Warning"
	case KindParse:
		return "Parse error"
	case KindError:
		return "Error"
	case KindFatal:
		return "Fatal error"
	default:
		return "Unknown"
	}
}

// Position mirrors lexer.Position without importing the lexer package,
// to keep errors dependency-free (it is imported from compiler, parser,
// and vm alike).
type Position struct {
	Line   int
	Column int
}

// Diagnostic is one formatted message bound to a source location.
type Diagnostic struct {
	Kind    Kind
	Message string
	File    string
	Pos     Position
}

func New(kind Kind, file string, pos Position, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), File: file, Pos: pos}
}

// String renders the diagnostic the way the error consumer receives it:
// "<file>: <line> <kind>: <message>".
func (d *Diagnostic) String() string {
	file := d.File
	if file == "" {
		file = "-"
	}
	return fmt.Sprintf("%s: %d %s: %s", file, d.Pos.Line, d.Kind, d.Message)
}

func (d *Diagnostic) Error() string { return d.String() }

// Consumer receives diagnostics as they are raised. A Bag built with a
// nil Consumer only records them; hosts may install their own.
type Consumer func(*Diagnostic)

// CompileErrorBudget bounds how many compile-time Error diagnostics
// accumulate before the compiler switches to abort mode.
const CompileErrorBudget = 15

// Bag accumulates diagnostics during one compile pass and tracks whether
// the error budget has been exhausted (Abort() becomes true).
type Bag struct {
	Diagnostics []*Diagnostic
	errorCount  int
	consumer    Consumer
}

func NewBag(consumer Consumer) *Bag {
	return &Bag{consumer: consumer}
}

// Report records a diagnostic and forwards it to the consumer, if any.
// Reporting a KindError or KindParse diagnostic counts against
// CompileErrorBudget.
func (b *Bag) Report(d *Diagnostic) {
	b.Diagnostics = append(b.Diagnostics, d)
	if d.Kind == KindError || d.Kind == KindParse {
		b.errorCount++
	}
	if b.consumer != nil {
		b.consumer(d)
	}
}

// Abort reports whether the compiler should stop attempting statement
// resynchronization and unwind the whole compile.
func (b *Bag) Abort() bool { return b.errorCount >= CompileErrorBudget }

func (b *Bag) HasErrors() bool { return b.errorCount > 0 }
