package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/internal/cli"
)

func Test_PrintConfig_Shows_Env_Sources_When_Env_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, `"config_file": "`+c.DocumentPath()+`"`)
	cli.AssertContains(t, stdout, `"datamodels_dir": "`+filepath.Join(c.Dir, "datamodels")+`"`)
	cli.AssertContains(t, stdout, "# sources")
	cli.AssertContains(t, stdout, "env=CONFDB_CONFIG_FILE,CONFDB_DATAMODELS_DIR")
	cli.AssertNotContains(t, stdout, "settings=")
}

func Test_PrintConfig_Applies_Settings_File_And_Flags_When_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	settings := `{
		// relative paths resolve against --cwd
		"audit_db": "journal.sqlite",
		"log_level": "debug",
	}`
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir, "confdb.json"), []byte(settings), 0o600))

	stdout := c.MustRun("--settings", "confdb.json", "--log-level", "error", "print-config")

	cli.AssertContains(t, stdout, `"audit_db": "`+filepath.Join(c.Dir, "journal.sqlite")+`"`)
	cli.AssertContains(t, stdout, `"log_level": "error"`)
	cli.AssertContains(t, stdout, "settings="+filepath.Join(c.Dir, "confdb.json"))
}

func Test_PrintConfig_Fails_When_Settings_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("--settings", "missing.json", "print-config")
	cli.AssertContains(t, stderr, "missing.json")

	require.NoError(t, os.WriteFile(filepath.Join(c.Dir, "bad.json"), []byte(`{"colour": "red"}`), 0o600))

	stderr = c.MustFail("--settings", "bad.json", "print-config")
	assert.NotEmpty(t, stderr)

	stderr = c.MustFail("--log-format", "xml", "print-config")
	cli.AssertContains(t, stderr, "xml")
}

func Test_PrintConfig_Works_When_Document_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	require.NoError(t, os.Remove(c.DocumentPath()))

	c.MustRun("print-config")

	stderr := c.MustFail("read", "conf.system.time")
	cli.AssertContains(t, stderr, "config store i/o")
	cli.AssertContains(t, stderr, c.DocumentPath())
}
