package project

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shinji-kodama/shake/internal/config"
	"github.com/shinji-kodama/shake/internal/layout"
	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/process"
)

// newFakeEngine returns an Engine driven by runner with a fixed staging ID.
func newFakeEngine(t *testing.T, runner process.Runner) *Engine {
	t.Helper()
	e := NewEngine(runner, config.Default(), zaptest.NewLogger(t))
	e.newID = func() string { return "test" }
	return e
}

// mkProjectDir creates an empty directory named name in a temp dir.
func mkProjectDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Mkdir(dir, 0755))
	return dir
}

// fakeGitEffects makes store creation and worktree creation leave
// directories behind, like the real commands do.
func fakeGitEffects(runner *process.FakeRunner) *process.FakeRunner {
	return runner.
		On("git init --bare", "", func(c process.Call) {
			_ = os.MkdirAll(c.Args[len(c.Args)-1], 0755)
		}).
		On("git worktree add", "", func(c process.Call) {
			// Every form passes the path right before or right after the
			// branch; the absolute one is the path.
			for _, a := range c.Args[2:] {
				if filepath.IsAbs(a) {
					_ = os.MkdirAll(a, 0755)
				}
			}
		})
}

func requireCLIError(t *testing.T, err error, code model.ExitCode) *model.CLIError {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %T: %v", err, err)
	assert.Equal(t, code, cliErr.Code, "unexpected exit code for: %v", err)
	return cliErr
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestInitCommandSequence(t *testing.T) {
	root := mkProjectDir(t, "demo")
	runner := fakeGitEffects(process.NewFakeRunner())
	e := newFakeEngine(t, runner)

	result, err := e.Init(context.Background(), root, model.BootstrapSelection{})
	require.NoError(t, err)

	store := filepath.Join(root, ".git")
	staging := filepath.Join(root, ".shake-staging-test", "demo")
	wt := filepath.Join(root, "main")

	assert.Equal(t, []string{
		"git init --bare --initial-branch=main " + store,
		"git init --initial-branch=main",
		"git add .",
		"git commit -m initial commit",
		"git remote add origin " + store,
		"git push -u origin main",
		"git worktree add " + wt + " main",
		"git remote",
	}, runner.Lines())

	calls := runner.Calls()
	for _, c := range calls[1:6] {
		assert.Equal(t, staging, c.Dir, "%s runs in the staging workspace", c)
	}
	assert.Equal(t, store, calls[6].Dir)
	assert.Equal(t, wt, calls[7].Dir)

	assert.Equal(t, "demo", result.Project.Name)
	assert.Equal(t, root, result.Project.Root)
	assert.Equal(t, []string{"main"}, result.Project.Worktrees)
	assert.Equal(t, wt, result.Worktree)
	assert.Equal(t, []string{".git", "main"}, dirEntries(t, root), "staging workspace is removed")
}

func TestInitRemovesSurvivingSeedRemote(t *testing.T) {
	root := mkProjectDir(t, "demo")
	runner := fakeGitEffects(process.NewFakeRunner()).On("git remote", "origin\n", nil)
	e := newFakeEngine(t, runner)

	_, err := e.Init(context.Background(), root, model.BootstrapSelection{})
	require.NoError(t, err)

	lines := runner.Lines()
	assert.Equal(t, "git remote remove origin", lines[len(lines)-1])
	assert.Equal(t, filepath.Join(root, "main"), runner.Calls()[len(lines)-1].Dir)
}

func TestInitRunsBootstrapInStaging(t *testing.T) {
	root := mkProjectDir(t, "demo")
	runner := fakeGitEffects(process.NewFakeRunner())
	e := newFakeEngine(t, runner)

	result, err := e.Init(context.Background(), root, model.BootstrapSelection{Cargo: true, LFS: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"cargo", "lfs"}, result.Bootstrapped)

	staging := filepath.Join(root, ".shake-staging-test", "demo")
	var bootstrapCalls []string
	for _, c := range runner.Calls() {
		if c.Name == "cargo" || (len(c.Args) > 0 && c.Args[0] == "lfs") {
			assert.Equal(t, staging, c.Dir)
			bootstrapCalls = append(bootstrapCalls, c.String())
		}
	}
	assert.Equal(t, []string{"cargo init --name demo", "git lfs install --local"}, bootstrapCalls)

	// Initializers run after the README is written and before the commit.
	lines := runner.Lines()
	assert.Less(t, indexOf(lines, "cargo init --name demo"), indexOf(lines, "git add ."))
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

func TestInitRollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"bare store", "git init --bare"},
		{"staging init", "git init --initial-branch"},
		{"bootstrap", "cargo init"},
		{"commit", "git commit"},
		{"push", "git push"},
		{"worktree", "git worktree add"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			root := mkProjectDir(t, "demo")
			require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("keep"), 0644))

			runner := process.NewFakeRunner().Fail(tt.prefix, 1, "fatal: boom")
			fakeGitEffects(runner)
			e := newFakeEngine(t, runner)

			_, err := e.Init(context.Background(), root, model.BootstrapSelection{Cargo: true})
			requireCLIError(t, err, model.ExitToolError)

			assert.Equal(t, []string{"notes.txt"}, dirEntries(t, root),
				"only files that existed before init remain")
		})
	}
}

func TestInitPreconditions(t *testing.T) {
	t.Run("existing store", func(t *testing.T) {
		root := mkProjectDir(t, "demo")
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))

		runner := process.NewFakeRunner()
		_, err := newFakeEngine(t, runner).Init(context.Background(), root, model.BootstrapSelection{})
		requireCLIError(t, err, model.ExitFilesystemError)
		assert.Empty(t, runner.Calls())
		assert.DirExists(t, filepath.Join(root, ".git"))
	})

	t.Run("existing default branch directory", func(t *testing.T) {
		root := mkProjectDir(t, "demo")
		notes := filepath.Join(root, "main", "notes.txt")
		require.NoError(t, os.Mkdir(filepath.Join(root, "main"), 0755))
		require.NoError(t, os.WriteFile(notes, []byte("keep"), 0644))

		runner := fakeGitEffects(process.NewFakeRunner())
		_, err := newFakeEngine(t, runner).Init(context.Background(), root, model.BootstrapSelection{})
		requireCLIError(t, err, model.ExitFilesystemError)
		assert.Empty(t, runner.Calls(), "nothing runs before the precondition check")
		assert.FileExists(t, notes)
		assert.Equal(t, []string{"main"}, dirEntries(t, root))
	})

	t.Run("missing directory", func(t *testing.T) {
		runner := process.NewFakeRunner()
		_, err := newFakeEngine(t, runner).Init(context.Background(),
			filepath.Join(t.TempDir(), "absent"), model.BootstrapSelection{})
		requireCLIError(t, err, model.ExitFilesystemError)
		assert.Empty(t, runner.Calls())
	})

	t.Run("not a directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		_, err := newFakeEngine(t, process.NewFakeRunner()).Init(context.Background(), file, model.BootstrapSelection{})
		requireCLIError(t, err, model.ExitFilesystemError)
	})
}

func TestNew(t *testing.T) {
	t.Run("creates the directory", func(t *testing.T) {
		parent := t.TempDir()
		runner := fakeGitEffects(process.NewFakeRunner())

		result, err := newFakeEngine(t, runner).New(context.Background(), parent, "widget", model.BootstrapSelection{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(parent, "widget"), result.Project.Root)
		assert.Equal(t, "widget", result.Project.Name)
		assert.Equal(t, []string{".git", "main"}, dirEntries(t, result.Project.Root))
	})

	t.Run("existing directory", func(t *testing.T) {
		parent := t.TempDir()
		existing := filepath.Join(parent, "widget")
		require.NoError(t, os.Mkdir(existing, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(existing, "keep"), nil, 0644))

		runner := process.NewFakeRunner()
		_, err := newFakeEngine(t, runner).New(context.Background(), parent, "widget", model.BootstrapSelection{})
		requireCLIError(t, err, model.ExitFilesystemError)
		assert.Empty(t, runner.Calls())
		assert.FileExists(t, filepath.Join(existing, "keep"))
	})

	t.Run("failure removes the directory", func(t *testing.T) {
		parent := t.TempDir()
		runner := fakeGitEffects(process.NewFakeRunner().Fail("git push", 1, "rejected"))

		_, err := newFakeEngine(t, runner).New(context.Background(), parent, "widget", model.BootstrapSelection{})
		requireCLIError(t, err, model.ExitToolError)
		assert.NoDirExists(t, filepath.Join(parent, "widget"))
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "  ", ".", "..", "a/b", `a\b`} {
			runner := process.NewFakeRunner()
			_, err := newFakeEngine(t, runner).New(context.Background(), t.TempDir(), name, model.BootstrapSelection{})
			requireCLIError(t, err, model.ExitInvalidInput)
			assert.Empty(t, runner.Calls(), "name %q", name)
		}
	})
}

func TestCloneCommandSequence(t *testing.T) {
	parent := t.TempDir()
	runner := fakeGitEffects(process.NewFakeRunner())
	e := newFakeEngine(t, runner)

	result, err := e.Clone(context.Background(), parent, "git@github.com:acme/widget.git", "")
	require.NoError(t, err)

	root := filepath.Join(parent, "widget")
	store := filepath.Join(root, ".git")
	assert.Equal(t, []string{
		"git clone --bare git@github.com:acme/widget.git " + store,
		"git config remote.origin.fetch +refs/heads/*:refs/remotes/origin/*",
		"git worktree add " + filepath.Join(root, "main") + " main",
	}, runner.Lines())
	assert.Equal(t, store, runner.Calls()[1].Dir)

	assert.Equal(t, "widget", result.Project.Name)
	assert.Equal(t, "main", result.Branch)
	assert.Equal(t, "github.com", result.Remote.Host)
}

func TestCloneExplicitBranch(t *testing.T) {
	parent := t.TempDir()
	runner := fakeGitEffects(process.NewFakeRunner())

	result, err := newFakeEngine(t, runner).Clone(context.Background(), parent, "host:a/b/c.git", "develop")
	require.NoError(t, err)

	lines := runner.Lines()
	assert.Equal(t, "git worktree add "+filepath.Join(parent, "c", "develop")+" develop", lines[len(lines)-1])
	assert.Equal(t, filepath.Join(parent, "c", "develop"), result.Worktree)
}

func TestCloneRejectsBadReference(t *testing.T) {
	for _, uri := range []string{"", "github.com", "widget.git", "host:widget"} {
		parent := t.TempDir()
		runner := process.NewFakeRunner()

		_, err := newFakeEngine(t, runner).Clone(context.Background(), parent, uri, "")
		cliErr := requireCLIError(t, err, model.ExitInvalidInput)
		assert.Equal(t, "Format: host:username/repo.git", cliErr.Hint)
		assert.Empty(t, runner.Calls(), "uri %q", uri)
		assert.Empty(t, dirEntries(t, parent), "nothing is created for %q", uri)
	}
}

func TestCloneFailureRemovesDirectory(t *testing.T) {
	for _, prefix := range []string{"git clone", "git config", "git worktree add"} {
		prefix := prefix
		t.Run(prefix, func(t *testing.T) {
			parent := t.TempDir()
			runner := fakeGitEffects(process.NewFakeRunner().Fail(prefix, 128, "fatal: nope"))

			_, err := newFakeEngine(t, runner).Clone(context.Background(), parent, "host:acme/widget.git", "")
			requireCLIError(t, err, model.ExitToolError)
			assert.Empty(t, dirEntries(t, parent))
		})
	}
}

func TestCloneExistingDirectory(t *testing.T) {
	parent := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(parent, "widget"), 0755))
	runner := process.NewFakeRunner()

	_, err := newFakeEngine(t, runner).Clone(context.Background(), parent, "host:acme/widget.git", "")
	requireCLIError(t, err, model.ExitFilesystemError)
	assert.Empty(t, runner.Calls())
	assert.DirExists(t, filepath.Join(parent, "widget"), "a directory that existed before is kept")
}

// initBareProject creates a project root with a bare store that layout
// recognizes, without running git.
func initBareProject(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "demo")
	_, err := git.PlainInit(filepath.Join(root, ".git"), true)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, "main"), 0755))
	return root
}

func TestCheckoutForms(t *testing.T) {
	tests := []struct {
		name     string
		opts     CheckoutOptions
		exists   bool
		wantLine string
	}{
		{"attach", CheckoutOptions{}, true, "git worktree add --force {path} feature"},
		{"create", CheckoutOptions{Create: true}, false, "git worktree add -b feature {path}"},
		{"create force", CheckoutOptions{Create: true, Force: true}, true, "git worktree add -B feature {path}"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			root := initBareProject(t)
			runner := process.NewFakeRunner()
			if !tt.exists {
				runner.Fail("git rev-parse", 1, "")
			}

			result, err := newFakeEngine(t, runner).Checkout(context.Background(),
				filepath.Join(root, "main"), "feature", tt.opts)
			require.NoError(t, err)

			path := filepath.Join(root, "feature")
			lines := runner.Lines()
			want := strings.Replace(tt.wantLine, "{path}", path, 1)
			assert.Equal(t, want, lines[len(lines)-1])
			assert.Equal(t, filepath.Join(root, ".git"), runner.Calls()[len(lines)-1].Dir)
			assert.Equal(t, path, result.Worktree)
			assert.Equal(t, tt.opts.Create, result.Created)
		})
	}
}

func TestCheckoutCreateExistingBranch(t *testing.T) {
	root := initBareProject(t)
	runner := process.NewFakeRunner() // rev-parse succeeds: the branch exists

	_, err := newFakeEngine(t, runner).Checkout(context.Background(), root, "feature", CheckoutOptions{Create: true})
	cliErr := requireCLIError(t, err, model.ExitInvalidInput)
	assert.Contains(t, cliErr.Message, `branch "feature" already exists`)

	for _, line := range runner.Lines() {
		assert.NotContains(t, line, "worktree add")
	}
}

func TestCheckoutErrors(t *testing.T) {
	t.Run("outside a project", func(t *testing.T) {
		runner := process.NewFakeRunner()
		_, err := newFakeEngine(t, runner).Checkout(context.Background(), t.TempDir(), "feature", CheckoutOptions{})
		requireCLIError(t, err, model.ExitNoProject)
		assert.Empty(t, runner.Calls())
	})

	t.Run("empty branch", func(t *testing.T) {
		_, err := newFakeEngine(t, process.NewFakeRunner()).Checkout(context.Background(), initBareProject(t), " ", CheckoutOptions{})
		requireCLIError(t, err, model.ExitInvalidInput)
	})

	t.Run("git failure", func(t *testing.T) {
		root := initBareProject(t)
		runner := process.NewFakeRunner().Fail("git worktree add", 128, "fatal: invalid reference: feature")
		_, err := newFakeEngine(t, runner).Checkout(context.Background(), root, "feature", CheckoutOptions{})
		cliErr := requireCLIError(t, err, model.ExitToolError)
		assert.Contains(t, cliErr.Message, "invalid reference")
	})

	t.Run("locked", func(t *testing.T) {
		root := initBareProject(t)
		unlock, err := layout.Lock(model.NewProject(root))
		require.NoError(t, err)
		defer unlock()

		runner := process.NewFakeRunner()
		_, err = newFakeEngine(t, runner).Checkout(context.Background(), root, "feature", CheckoutOptions{})
		requireCLIError(t, err, model.ExitLocked)
		assert.Empty(t, runner.Calls())
	})
}

func TestListSkipsBareEntry(t *testing.T) {
	root := initBareProject(t)
	porcelain := "worktree " + filepath.Join(root, ".git") + "\nbare\n\n" +
		"worktree " + filepath.Join(root, "main") + "\nHEAD abc\nbranch refs/heads/main\n\n" +
		"worktree " + filepath.Join(root, "feature") + "\nHEAD def\nbranch refs/heads/feature\n"
	runner := process.NewFakeRunner().On("git worktree list", porcelain, nil)

	project, worktrees, err := newFakeEngine(t, runner).List(context.Background(), filepath.Join(root, "main"))
	require.NoError(t, err)
	assert.Equal(t, root, project.Root)
	assert.Equal(t, []string{"main", "feature"}, project.Worktrees)
	require.Len(t, worktrees, 2)
	assert.Equal(t, filepath.Join(root, "feature"), worktrees[1].Path)
}

// requireGit skips the test when git is missing and pins a commit
// identity so commits work on machines without a global git config.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	t.Setenv("GIT_AUTHOR_NAME", "Test User")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test User")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(t.TempDir(), "gitconfig"))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}
