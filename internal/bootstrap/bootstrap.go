// Package bootstrap runs the per-ecosystem initializers that seed a new
// project's first commit with a manifest (Cargo.toml, go.mod, package.json
// and so on).
//
// Each initializer is independent of the others and runs inside the
// staging workspace before the initial commit, so whatever it generates
// becomes part of project history. The table below is the single place
// that knows which tool, arguments and output files belong to which flag.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/process"
)

// DefaultGoModulePrefix is the placeholder module path prefix used for
// `go mod init`, matching what users are expected to rename later.
const DefaultGoModulePrefix = "changeme"

// Params carries the values initializers may embed in their arguments.
type Params struct {
	// Project is the project name (the project root's base name).
	Project string

	// GoModulePrefix is prepended to Project to form the Go module path.
	GoModulePrefix string
}

// Ecosystem describes one bootstrap flag.
type Ecosystem struct {
	// Name is the flag name without dashes ("cargo", "go", ...).
	Name string

	// Tool is the executable to run. It is also the key used to look up
	// binary overrides from configuration.
	Tool string

	// Args builds the argument vector for the tool.
	Args func(p Params) []string

	// Manifests lists the files, relative to the staging directory, the
	// initializer is expected to create.
	Manifests func(p Params) []string
}

// Ecosystems returns the supported initializers in the order they run.
// The order is fixed for reproducible output only; no initializer depends
// on another.
func Ecosystems() []Ecosystem {
	return []Ecosystem{
		{
			Name: "cargo",
			Tool: "cargo",
			Args: func(p Params) []string { return []string{"init", "--name", p.Project} },
			Manifests: func(Params) []string {
				return []string{"Cargo.toml", "src/main.rs"}
			},
		},
		{
			Name: "go",
			Tool: "go",
			Args: func(p Params) []string {
				prefix := p.GoModulePrefix
				if prefix == "" {
					prefix = DefaultGoModulePrefix
				}
				return []string{"mod", "init", prefix + "/" + p.Project}
			},
			Manifests: func(Params) []string { return []string{"go.mod"} },
		},
		{
			Name:      "npm",
			Tool:      "npm",
			Args:      func(Params) []string { return []string{"init", "-y"} },
			Manifests: func(Params) []string { return []string{"package.json"} },
		},
		{
			Name: "dotnet",
			Tool: "dotnet",
			Args: func(p Params) []string {
				return []string{"new", "console", "--name", p.Project, "--output", "."}
			},
			Manifests: func(p Params) []string {
				return []string{p.Project + ".csproj", "Program.cs"}
			},
		},
		{
			Name:      "rye",
			Tool:      "rye",
			Args:      func(p Params) []string { return []string{"init", "--name", p.Project} },
			Manifests: func(Params) []string { return []string{"pyproject.toml"} },
		},
		{
			// git-lfs installs hooks into the repository; it writes no
			// tracked file of its own.
			Name:      "lfs",
			Tool:      "git",
			Args:      func(Params) []string { return []string{"lfs", "install", "--local"} },
			Manifests: func(Params) []string { return nil },
		},
	}
}

// Lookup returns the ecosystem with the given name.
func Lookup(name string) (Ecosystem, bool) {
	for _, e := range Ecosystems() {
		if e.Name == name {
			return e, true
		}
	}
	return Ecosystem{}, false
}

// Bootstrapper runs the selected initializers.
type Bootstrapper struct {
	runner process.Runner
	tools  map[string]string
	prefix string
	logger *zap.Logger
}

// New creates a Bootstrapper. tools maps a tool name ("cargo", "git", ...)
// to the binary that should be run for it; missing entries run the tool
// name from PATH.
func New(runner process.Runner, tools map[string]string, goModulePrefix string, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{runner: runner, tools: tools, prefix: goModulePrefix, logger: logger}
}

// Run executes every initializer enabled in sel inside dir, stopping at the
// first failure. It returns the names of the initializers that ran.
func (b *Bootstrapper) Run(ctx context.Context, dir, project string, sel model.BootstrapSelection) ([]string, error) {
	params := Params{Project: project, GoModulePrefix: b.prefix}

	var ran []string
	for _, name := range sel.Names() {
		eco, ok := Lookup(name)
		if !ok {
			return ran, model.NewCLIError(model.ExitInvalidInput, fmt.Sprintf("unknown ecosystem %q", name))
		}

		binary := eco.Tool
		if override, ok := b.tools[eco.Tool]; ok && override != "" {
			binary = override
		}

		b.logger.Info("bootstrapping", zap.String("ecosystem", eco.Name))
		_, err := process.Check(ctx, b.runner, binary, eco.Args(params),
			process.RunOpts{Dir: dir, Stream: true})
		if err != nil {
			return ran, model.WrapCLIError(model.ExitToolError, fmt.Sprintf("%s bootstrap failed", eco.Name), err)
		}
		ran = append(ran, eco.Name)
	}
	return ran, nil
}
