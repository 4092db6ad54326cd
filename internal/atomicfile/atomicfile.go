// Package atomicfile replaces files so that the target path is never
// observable in a partially written state: at any instant it either does
// not exist, holds its previous content, or holds the new content in full.
package atomicfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/sitewright/sitewright/internal/engine"
	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

// Request describes one atomic file replacement.
type Request struct {
	Path    string
	Content []byte
	Mode    os.FileMode
	// UID/GID of -1 leave ownership untouched.
	UID int
	GID int
}

// NewRequest builds a request that keeps the current ownership.
func NewRequest(path string, content []byte, mode os.FileMode) Request {
	return Request{Path: path, Content: content, Mode: mode, UID: -1, GID: -1}
}

type priorState struct {
	existed bool
	content []byte
	mode    os.FileMode
	uid     int
	gid     int
}

// Write atomically replaces req.Path with req.Content and returns a
// reversal that restores the previous file exactly, or deletes the path
// if it did not exist before.
//
// The temp file lives in the target's directory so the final rename stays
// on one filesystem. A failure before the rename removes the temp file and
// leaves the target untouched (prepare phase); a failure of the rename
// itself is reported as a replace-phase error because the visible outcome
// cannot be reasoned about across filesystems.
func Write(req Request) (engine.Reversal, error) {
	prior, err := capture(req.Path)
	if err != nil {
		return engine.Reversal{}, swerrors.NewAtomicWriteError(req.Path, swerrors.PhasePrepare, err)
	}

	if err := place(req.Path, req.Content, req.Mode, req.UID, req.GID); err != nil {
		return engine.Reversal{}, err
	}

	return engine.Reversal{
		Name: fmt.Sprintf("restore %s", req.Path),
		Undo: func(ctx context.Context) error {
			if !prior.existed {
				if err := os.Remove(req.Path); err != nil && !os.IsNotExist(err) {
					return err
				}
				return nil
			}
			return place(req.Path, prior.content, prior.mode, prior.uid, prior.gid)
		},
	}, nil
}

func capture(path string) (priorState, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return priorState{existed: false}, nil
	}
	if err != nil {
		return priorState{}, err
	}
	if !info.Mode().IsRegular() {
		return priorState{}, fmt.Errorf("%s exists and is not a regular file", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return priorState{}, err
	}

	prior := priorState{existed: true, content: content, mode: info.Mode().Perm(), uid: -1, gid: -1}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		prior.uid = int(st.Uid)
		prior.gid = int(st.Gid)
	}
	return prior, nil
}

// place performs the actual temp-write-rename sequence.
func place(path string, content []byte, mode os.FileMode, uid, gid int) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return swerrors.NewAtomicWriteError(path, swerrors.PhasePrepare, err)
	}
	tmpPath := tmp.Name()

	prepare := func() error {
		if _, err := tmp.Write(content); err != nil {
			return err
		}
		if err := tmp.Sync(); err != nil {
			return err
		}
		if err := tmp.Chmod(mode); err != nil {
			return err
		}
		if uid >= 0 || gid >= 0 {
			if err := tmp.Chown(uid, gid); err != nil {
				return err
			}
		}
		return tmp.Close()
	}

	if err := prepare(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return swerrors.NewAtomicWriteError(path, swerrors.PhasePrepare, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return swerrors.NewAtomicWriteError(path, swerrors.PhaseReplace, err)
	}
	return nil
}
