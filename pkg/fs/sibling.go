package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

const siblingMaxAttempts = 10000

var siblingCounter atomic.Uint64

// CreateSibling exclusively creates a new file next to path named
// ".<base>.<tag>-<pid>-<seq>". Names are unique within the process and do not
// collide with other processes using the same scheme.
func CreateSibling(fsys FS, path, tag string, perm os.FileMode) (File, string, error) {
	dir, base := filepath.Split(path)
	if base == "" {
		return nil, "", fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	pid := os.Getpid()

	for range siblingMaxAttempts {
		seq := siblingCounter.Add(1)
		name := filepath.Join(dir, fmt.Sprintf(".%s.%s-%d-%d", base, tag, pid, seq))

		file, err := fsys.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, name, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create %s file: %w", tag, err)
	}

	return nil, "", fmt.Errorf("exhausted %s file attempts in %q", tag, dir)
}

// CopyToSibling copies src into a fresh sibling file (see [CreateSibling]),
// syncs it and returns its path. On failure no sibling is left behind.
func CopyToSibling(fsys FS, src, tag string) (string, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", src, err)
	}

	defer func() { _ = in.Close() }()

	out, name, err := CreateSibling(fsys, src, tag, 0o600)
	if err != nil {
		return "", err
	}

	_, copyErr := io.Copy(out, in)
	if copyErr == nil {
		copyErr = out.Sync()
	}

	closeErr := out.Close()

	if err := errors.Join(copyErr, closeErr); err != nil {
		removeErr := fsys.Remove(name)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			return "", errors.Join(fmt.Errorf("copy %q to %q: %w", src, name, err), removeErr)
		}

		return "", fmt.Errorf("copy %q to %q: %w", src, name, err)
	}

	return name, nil
}
