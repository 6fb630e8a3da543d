package layout

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/shinji-kodama/shake/internal/model"
)

// lockFileName lives inside the bare store. Git ignores unknown files
// there, and the store is the one place every worktree of a project shares.
const lockFileName = "shake.lock"

// Lock acquires an exclusive advisory lock on the project so that two
// shake processes do not register worktrees in the same store at once.
// The returned function releases it. If another process holds the lock
// the error is a CLIError with ExitLocked.
func Lock(project model.Project) (unlock func(), err error) {
	fl := flock.New(filepath.Join(project.Store(), lockFileName))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFilesystemError, "failed to acquire project lock", err)
	}
	if !locked {
		return nil, model.NewCLIError(model.ExitLocked,
			fmt.Sprintf("another shake command is running in %s", project.Root))
	}

	return func() { _ = fl.Unlock() }, nil
}
