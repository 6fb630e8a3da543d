package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StoreDirName is the name of the bare store directory directly under a
// project root. Git discovers it on its own when invoked from the root,
// which is what makes the layout work without extra configuration.
const StoreDirName = ".git"

// DefaultBranch is the branch created by init/new and the default branch
// checked out by clone.
const DefaultBranch = "main"

// Project describes a bare-store project on disk:
//
//	<root>/
//	  .git/        # bare store, no working files
//	  main/        # one directory per worktree
//	  feature-x/
//
// The store, not this struct, is the source of truth for which worktrees
// are registered. Worktrees is populated only by the operation that built
// the value (e.g. init reports the single "main" worktree it created).
type Project struct {
	// Root is the absolute path to the project's top-level directory.
	Root string `json:"root"`

	// Name is the project name, which is the base name of Root.
	Name string `json:"name"`

	// Worktrees lists worktree directory names relative to Root.
	Worktrees []string `json:"worktrees,omitempty"`
}

// NewProject returns a Project rooted at root. The name is derived from
// the final path element.
func NewProject(root string) Project {
	return Project{Root: root, Name: filepath.Base(root)}
}

// Store returns the absolute path to the project's bare store.
func (p Project) Store() string {
	return filepath.Join(p.Root, StoreDirName)
}

// WorktreePath returns the path at which the worktree for branch lives.
// Branch and directory names coincide by convention; a branch containing
// slashes maps to a nested directory, the same way git itself lays it out.
func (p Project) WorktreePath(branch string) string {
	return filepath.Join(p.Root, filepath.FromSlash(branch))
}

// BootstrapSelection is the set of ecosystem initializers to run inside the
// staging workspace before the initial commit. Every flag is independent
// of the others.
type BootstrapSelection struct {
	Cargo  bool `json:"cargo" yaml:"cargo"`
	Go     bool `json:"go" yaml:"go"`
	NPM    bool `json:"npm" yaml:"npm"`
	Dotnet bool `json:"dotnet" yaml:"dotnet"`
	Rye    bool `json:"rye" yaml:"rye"`
	LFS    bool `json:"lfs" yaml:"lfs"`
}

// Merge returns the union of s and other. It is used to layer flags given
// on the command line on top of the configured defaults.
func (s BootstrapSelection) Merge(other BootstrapSelection) BootstrapSelection {
	return BootstrapSelection{
		Cargo:  s.Cargo || other.Cargo,
		Go:     s.Go || other.Go,
		NPM:    s.NPM || other.NPM,
		Dotnet: s.Dotnet || other.Dotnet,
		Rye:    s.Rye || other.Rye,
		LFS:    s.LFS || other.LFS,
	}
}

// ecosystemOrder is the order initializers run in. Language initializers
// come before lfs so that its hooks land in a repository whose files
// already exist.
var ecosystemOrder = []string{"cargo", "go", "npm", "dotnet", "rye", "lfs"}

// Names returns the enabled ecosystem names in run order.
func (s BootstrapSelection) Names() []string {
	var names []string
	for _, name := range ecosystemOrder {
		if s.Enabled(name) {
			names = append(names, name)
		}
	}
	return names
}

// Enabled reports whether the ecosystem with the given name is selected.
// Unknown names report false.
func (s BootstrapSelection) Enabled(name string) bool {
	switch strings.ToLower(name) {
	case "cargo":
		return s.Cargo
	case "go":
		return s.Go
	case "npm":
		return s.NPM
	case "dotnet":
		return s.Dotnet
	case "rye":
		return s.Rye
	case "lfs":
		return s.LFS
	}
	return false
}

// RemoteRef is a parsed remote repository reference such as
// "git@github.com:user/repo.git".
type RemoteRef struct {
	// URI is the reference exactly as the user supplied it. It is what gets
	// passed to git clone.
	URI string `json:"uri"`

	// Host is the remote host (e.g. "github.com").
	Host string `json:"host"`

	// User is the login part of an SCP-style reference ("git"), if any.
	User string `json:"user,omitempty"`

	// Path is the repository path on the host ("user/repo.git").
	Path string `json:"path"`

	// Name is the bare repository name with any ".git" suffix removed.
	// It becomes the project directory name.
	Name string `json:"name"`
}

// ExitCode defines the process exit codes shake returns. Scripts can use
// them to tell input mistakes apart from failures of the external tools.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidInput indicates user input was rejected before any
	// filesystem mutation (e.g. a malformed remote reference).
	ExitInvalidInput ExitCode = 2

	// ExitToolError indicates an external tool (git, cargo, go, npm,
	// dotnet, rye) could not be started or exited non-zero.
	ExitToolError ExitCode = 3

	// ExitFilesystemError indicates a directory could not be created,
	// removed, or inspected.
	ExitFilesystemError ExitCode = 4

	// ExitNoProject indicates no enclosing project was found above the
	// current directory.
	ExitNoProject ExitCode = 5

	// ExitLocked indicates another shake process holds the project lock.
	ExitLocked ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Hint is an optional usage hint printed on its own line after the
	// error (e.g. the expected remote reference format).
	Hint string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// WithHint returns e with the given usage hint attached.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
