// Package engine is the embedding surface for the compiler and VM: an
// Engine holds everything shared across every VM it creates (host
// functions, host constants, host classes, the error consumer and
// error-log sink, a default output consumer); a VM (vm.Machine) holds
// exactly one compiled script. Distinct VMs may run on
// distinct goroutines; the Engine's own mutex guards only mutation of
// its shared registration tables, never held across a host callback or
// a running VM.
package engine

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/vesper-lang/vesper/compiler"
	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/registry"
	"github.com/vesper-lang/vesper/values"
	"github.com/vesper-lang/vesper/vm"
)

// Engine owns the host-registered symbol tables every VM it compiles
// copies from, plus the diagnostic consumer and error-log sink used as
// engine-level configuration.
type Engine struct {
	mu sync.Mutex

	hostFuncs   map[string]registry.BuiltinImplementation
	hostConsts  map[string]func() *values.Value
	hostClasses map[string]*values.Class

	consumer errors.Consumer
	errorLog io.Writer
	output   io.Writer
}

// New builds an Engine with no host registrations, an error log sink of
// os.Stderr, and a default output consumer of os.Stdout.
func New() *Engine {
	return &Engine{
		hostFuncs:   make(map[string]registry.BuiltinImplementation),
		hostConsts:  make(map[string]func() *values.Value),
		hostClasses: make(map[string]*values.Class),
		errorLog:    os.Stderr,
		output:      os.Stdout,
	}
}

// RegisterFunction installs a host foreign function visible to every
// script this Engine subsequently compiles.
func (e *Engine) RegisterFunction(name string, impl registry.BuiltinImplementation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hostFuncs[strings.ToLower(name)] = impl
}

// RegisterConstant installs a host constant's expand callback.
func (e *Engine) RegisterConstant(name string, expand func() *values.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hostConsts[name] = expand
}

// RegisterClass installs a pre-built host class descriptor.
func (e *Engine) RegisterClass(cls *values.Class) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hostClasses[strings.ToLower(cls.Name)] = cls
}

// SetErrorConsumer installs the callback every compiled script's
// diagnostics are forwarded to.
func (e *Engine) SetErrorConsumer(c errors.Consumer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumer = c
}

// SetErrorLog records the Engine's error-log sink (os.Stderr by default).
// Compile does not pass the sink to the scripts it builds: their
// diagnostics, uncaught errors included, go only to the script's Bag and
// the error consumer.
func (e *Engine) SetErrorLog(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorLog = w
}

// SetDefaultOutput installs the output consumer that every VM this
// Engine subsequently compiles writes to.
func (e *Engine) SetDefaultOutput(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.output = w
}

// Script is one compiled program bound to the Machine that will execute
// it: one Machine is bound to exactly one compiled script.
type Script struct {
	File    string
	Bag     *errors.Bag
	Program *compiler.Program
	Machine *vm.Machine
}

// Run executes the script to completion.
func (s *Script) Run() error { return s.Machine.Run(s.Program) }

func parseErrorMask(name string) errors.Kind {
	switch strings.ToLower(name) {
	case "deprecated":
		return errors.KindDeprecated
	case "warning":
		return errors.KindWarning
	case "parse":
		return errors.KindParse
	case "error":
		return errors.KindError
	case "fatal":
		return errors.KindFatal
	default:
		return errors.KindNotice
	}
}

// newRegistry seeds a fresh registry.Registry with a snapshot of this
// Engine's host registrations, so host functions/constants/classes
// registered ahead of time are visible throughout compilation and
// execution of the new script.
func (e *Engine) newRegistry() *registry.Registry {
	e.mu.Lock()
	defer e.mu.Unlock()
	reg := registry.New()
	for name, impl := range e.hostFuncs {
		reg.Builtins[name] = impl
	}
	for name, expand := range e.hostConsts {
		reg.HostConstants[name] = expand
	}
	for name, cls := range e.hostClasses {
		reg.Classes[name] = cls
	}
	return reg
}

// Compile lexes, parses, and lowers source into a Script ready to Run,
// against a registry seeded with this Engine's host registrations.
// Diagnostics are funneled through both the returned Bag and, if set,
// the Engine's error consumer.
func (e *Engine) Compile(file, source string, cfg Config) *Script {
	e.mu.Lock()
	consumer := e.consumer
	output := e.output
	e.mu.Unlock()

	bag := errors.NewBag(consumer)
	reg := e.newRegistry()
	vm.SeedExceptionClasses(reg)
	prog := compiler.Compile(file, source, bag, reg)

	vcfg := vm.Config{
		MaxRecursionDepth: cfg.MaxRecursionDepth,
		Output:            output,
		Argv:              cfg.Argv,
		ErrorReportMask:   parseErrorMask(cfg.ErrorReportMask),
	}
	machine := vm.New(file, reg, bag, vcfg)
	return &Script{File: file, Bag: bag, Program: prog, Machine: machine}
}
