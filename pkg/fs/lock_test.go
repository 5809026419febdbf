package fs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/pkg/fs"
)

func Test_LockPath_Is_Hidden_Sibling_When_Called(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/etc/openmediavault/.config.xml.lock", fs.LockPath("/etc/openmediavault/config.xml"))
	assert.Equal(t, ".config.xml.lock", fs.LockPath("config.xml"))
}

func Test_TryLock_Fails_With_WouldBlock_When_Lock_Held(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", ".doc.lock")
	locker := fs.NewLocker(fs.NewReal())

	held, err := locker.TryLock(path)
	require.NoError(t, err)

	_, err = locker.TryLock(path)
	require.ErrorIs(t, err, fs.ErrWouldBlock)

	require.NoError(t, held.Close())
	require.NoError(t, held.Close())

	again, err := locker.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func Test_Lock_Waits_For_Release_When_Lock_Held(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".doc.lock")
	locker := fs.NewLocker(fs.NewReal())

	held, err := locker.TryLock(path)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)

		_ = held.Close()
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	lk, err := locker.Lock(ctx, path)
	require.NoError(t, err)
	require.NoError(t, lk.Close())
}

func Test_Lock_Gives_Up_When_Context_Done(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".doc.lock")
	locker := fs.NewLocker(fs.NewReal())

	held, err := locker.TryLock(path)
	require.NoError(t, err)

	defer func() { _ = held.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err=%v", err)
}

func Test_TryLock_Fails_When_OpenFile_Fails(t *testing.T) {
	t.Parallel()

	faulty := fs.NewFaulty(fs.NewReal())
	faulty.FailOn(fs.OpOpenFile, errors.New("disk gone"))

	_, err := fs.NewLocker(faulty).TryLock(filepath.Join(t.TempDir(), ".doc.lock"))
	require.Error(t, err)
	assert.True(t, fs.IsInjected(err), "err=%v", err)
}
