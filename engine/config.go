package engine

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the host-facing settings document for
// VM configuration: max recursion depth, include paths, argv, and the
// error-reporting mask. It is usable either built
// programmatically or loaded from a YAML file via LoadConfig, the way a
// real embeddable engine ships a settings file alongside its API.
type Config struct {
	MaxRecursionDepth int      `yaml:"max_recursion_depth"`
	IncludePaths      []string `yaml:"include_paths"`
	Argv              []string `yaml:"argv"`

	// ErrorReportMask names the lowest errors.Kind that is reported;
	// diagnostics below it are swallowed. One of "notice", "deprecated",
	// "warning", "parse", "error", "fatal". Empty means "notice" (report
	// everything).
	ErrorReportMask string `yaml:"error_report_mask"`

	// AssertionsEnabled is carried in the document and loaded from YAML,
	// but Engine.Compile does not pass it to the VM and no `assert()`
	// builtin is registered, so it has no effect on compilation or
	// execution.
	AssertionsEnabled bool `yaml:"assertions_enabled"`
}

// DefaultConfig mirrors vm.DefaultMaxRecursionDepth so a zero-value
// Config loaded from an incomplete YAML document still behaves
// sensibly.
func DefaultConfig() Config {
	return Config{MaxRecursionDepth: 512, AssertionsEnabled: true}
}

// LoadConfig reads and parses a YAML configuration document from path,
// starting from DefaultConfig so any field the document omits keeps its
// default rather than zeroing out.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
