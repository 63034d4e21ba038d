package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// rebuildLock is the cross-process lock held for the length of a Rebuild.
type rebuildLock struct {
	file *os.File
}

// acquireRebuildLock locks <vault>/.mondo/index.lock. It fails fast with
// ErrIndexLocked when another process holds it.
func acquireRebuildLock(vaultPath string) (*rebuildLock, error) {
	dir := filepath.Join(vaultPath, StateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", StateDir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "index.lock"), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index lock: %w", err)
	}
	held, err := tryLock(f)
	if err != nil || !held {
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire index lock: %w", err)
		}
		return nil, ErrIndexLocked
	}
	return &rebuildLock{file: f}, nil
}

// Release unlocks and closes the lock file.
func (l *rebuildLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	return errors.Join(unlock(l.file), l.file.Close())
}
