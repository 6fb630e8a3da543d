// Package remote parses remote repository references given to
// `shake clone` and derives the project directory name from them.
package remote

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/shinji-kodama/shake/internal/model"
)

// FormatHint is printed after a rejected reference.
const FormatHint = "Format: host:username/repo.git"

// Parse validates uri and decomposes it into a RemoteRef.
//
// Supported forms:
//   - scp-like: git@github.com:owner/repo.git, host:a/b/c.git
//   - URLs: https://github.com/owner/repo.git, ssh://git@host/owner/repo
//
// The reference must contain a ':' followed somewhere by a '/'; anything
// else is rejected before the caller touches the filesystem. The project
// name is the last path segment with ".git" removed, so "host:a/b/c.git"
// yields "c". A reference ending in '/' has no repository segment and is
// rejected, so "host:user/" never names a project "user".
func Parse(uri string) (model.RemoteRef, error) {
	raw := strings.TrimSpace(uri)

	_, rest, ok := strings.Cut(raw, ":")
	if !ok || !strings.Contains(rest, "/") {
		return model.RemoteRef{}, invalid(uri, "expected host:path")
	}

	endpoint, err := transport.NewEndpoint(raw)
	if err != nil {
		return model.RemoteRef{}, invalid(uri, err.Error())
	}

	name := repoName(endpoint.Path)
	if name == "" {
		return model.RemoteRef{}, invalid(uri, "missing repository name")
	}

	return model.RemoteRef{
		URI:  raw,
		Host: endpoint.Host,
		User: endpoint.User,
		Path: strings.TrimPrefix(endpoint.Path, "/"),
		Name: name,
	}, nil
}

// repoName returns the final segment of p without a ".git" suffix.
// "." and ".." are never valid names because they would escape the
// directory the project is created in.
func repoName(p string) string {
	if strings.HasSuffix(p, "/") {
		return ""
	}
	base := strings.TrimSuffix(path.Base(p), ".git")
	switch base {
	case "", ".", "..", "/":
		return ""
	}
	return base
}

func invalid(uri, reason string) *model.CLIError {
	return model.NewCLIError(model.ExitInvalidInput,
		fmt.Sprintf("invalid repo URI %q: %s", uri, reason)).WithHint(FormatHint)
}
