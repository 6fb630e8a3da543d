// Package model defines the core domain types for shake.
//
// This package contains the data structures that describe a bare-store
// project on disk (Project), the set of ecosystem initializers a new
// project is seeded with (BootstrapSelection), a parsed remote repository
// reference (RemoteRef), and the error type that carries process exit codes
// (CLIError).
//
// The model package has no dependencies on external libraries or other
// internal packages, making it safe to import from any layer.
package model
