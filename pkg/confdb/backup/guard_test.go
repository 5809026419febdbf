package backup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/pkg/confdb/backup"
	"github.com/calvinalkan/confdb/pkg/fs"
)

const original = "<?xml version=\"1.0\"?>\n<config>\n  <system/>\n</config>\n"

func writeDoc(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte(original), 0o640))

	return path
}

func read(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func entries(t *testing.T, dir string) []string {
	t.Helper()

	list, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}

	return names
}

func Test_Rollback_Restores_Document_Byte_For_Byte_When_Mutated(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	g := backup.New(path)

	require.NoError(t, g.Begin())

	bak := g.BackupPath()
	require.NotEmpty(t, bak)
	assert.True(t, strings.HasPrefix(filepath.Base(bak), ".config.xml.backup-"))

	require.NoError(t, os.WriteFile(path, []byte("<config>garbage</config>"), 0o640))
	require.NoError(t, g.Rollback())

	assert.Equal(t, original, read(t, path))
	assert.Empty(t, g.BackupPath())
	assert.Equal(t, []string{"config.xml"}, entries(t, filepath.Dir(path)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func Test_Commit_Keeps_Mutation_And_Removes_Backup_When_Called(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	g := backup.New(path)

	require.NoError(t, g.Begin())
	require.NoError(t, os.WriteFile(path, []byte("<config/>"), 0o640))
	require.NoError(t, g.Commit())

	assert.Equal(t, "<config/>", read(t, path))
	assert.Equal(t, []string{"config.xml"}, entries(t, filepath.Dir(path)))
}

func Test_Guard_Enforces_Single_Backup_When_Used_Out_Of_Order(t *testing.T) {
	t.Parallel()

	g := backup.New(writeDoc(t))

	require.ErrorIs(t, g.Commit(), backup.ErrNoBackup)
	require.ErrorIs(t, g.Rollback(), backup.ErrNoBackup)

	require.NoError(t, g.Begin())
	require.ErrorIs(t, g.Begin(), backup.ErrAlreadyBackedUp)

	require.NoError(t, g.Commit())
	require.ErrorIs(t, g.Commit(), backup.ErrNoBackup)

	require.NoError(t, g.Begin())
	require.NoError(t, g.Rollback())
}

func Test_Begin_Fails_When_Document_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g := backup.New(filepath.Join(dir, "config.xml"))

	require.Error(t, g.Begin())
	assert.Empty(t, g.BackupPath())
	assert.Empty(t, entries(t, dir))
}

func Test_Rollback_Keeps_Backup_When_Restore_Fails(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	faulty := fs.NewFaulty(fs.NewReal())
	g := backup.New(path, backup.WithFS(faulty))

	require.NoError(t, g.Begin())
	require.NoError(t, os.WriteFile(path, []byte("<changed/>"), 0o640))

	faulty.FailOn(fs.OpWriteFileAtomic, errors.New("read-only filesystem"))

	err := g.Rollback()
	require.Error(t, err)
	assert.True(t, fs.IsInjected(err))
	assert.NotEmpty(t, g.BackupPath())

	faulty.FailOn(fs.OpWriteFileAtomic, nil)

	require.NoError(t, g.Rollback())
	assert.Equal(t, original, read(t, path))
}

func Test_Run_Rolls_Back_When_Callback_Fails(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	g := backup.New(path)
	boom := errors.New("boom")

	err := g.Run(t.Context(), func(context.Context) error {
		if err := os.WriteFile(path, []byte("<half/>"), 0o640); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, original, read(t, path))
	assert.Equal(t, []string{"config.xml"}, entries(t, filepath.Dir(path)))
}

func Test_Run_Commits_When_Callback_Succeeds(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	g := backup.New(path)

	err := g.Run(t.Context(), func(context.Context) error {
		return os.WriteFile(path, []byte("<done/>"), 0o640)
	})
	require.NoError(t, err)

	assert.Equal(t, "<done/>", read(t, path))
	assert.Empty(t, g.BackupPath())
}

func Test_Run_Rolls_Back_When_Context_Cancelled(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	g := backup.New(path)

	ctx, cancel := context.WithCancel(t.Context())

	err := g.Run(ctx, func(context.Context) error {
		cancel()

		return os.WriteFile(path, []byte("<late/>"), 0o640)
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, original, read(t, path))
}

