package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// isolatedEnv points the system settings file into dir so the host's
// /etc/confdb is never read.
func isolatedEnv(dir string) map[string]string {
	return map[string]string{config.EnvSettings: filepath.Join(dir, "system.json")}
}

func Test_Load_Returns_Defaults_When_Nothing_Configured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, Env: isolatedEnv(dir)})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultDocumentPath, cfg.DocumentPath)
	assert.Equal(t, config.DefaultDatamodelsDir, cfg.DatamodelsDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.Sources.System)
	assert.Empty(t, cfg.HistoryFile)
}

func Test_Load_Applies_Layers_In_Order_When_All_Present(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := isolatedEnv(dir)

	writeFile(t, env[config.EnvSettings], `{
		// system wide
		"config_file": "/srv/system.xml",
		"datamodels_dir": "models",
		"log_level": "info",
	}`)
	writeFile(t, filepath.Join(dir, "explicit.json"), `{"config_file": "explicit.xml", "audit_db": "audit.sqlite"}`)

	env[config.EnvOMVDocument] = "/from/omv.xml"
	env[config.EnvLogLevel] = "debug"
	env["HOME"] = "/home/admin"

	cfg, err := config.Load(config.LoadInput{
		WorkDir:      dir,
		SettingsPath: "explicit.json",
		Overrides:    config.Config{LogFormat: "json"},
		Env:          env,
	})
	require.NoError(t, err)

	want := config.Config{
		DocumentPath:  "/from/omv.xml",
		DatamodelsDir: filepath.Join(dir, "models"),
		AuditDB:       filepath.Join(dir, "audit.sqlite"),
		LogLevel:      "debug",
		LogFormat:     "json",
		HistoryFile:   "/home/admin/.confdbadm_history",
		Sources: config.Sources{
			System:   env[config.EnvSettings],
			Explicit: filepath.Join(dir, "explicit.json"),
			Env:      []string{config.EnvOMVDocument, config.EnvLogLevel},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Prefers_Confdb_Env_When_Both_Document_Vars_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := isolatedEnv(dir)
	env[config.EnvOMVDocument] = "/omv.xml"
	env[config.EnvDocumentPath] = "/confdb.xml"

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, Env: env})
	require.NoError(t, err)
	assert.Equal(t, "/confdb.xml", cfg.DocumentPath)
}

func Test_Load_Fails_When_Settings_File_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"syntax", `{"config_file": `, config.ErrConfigInvalid},
		{"unknown key", `{"ticket_dir": "x"}`, config.ErrConfigInvalid},
		{"empty document", `{"config_file": ""}`, config.ErrDocumentPathEmpty},
		{"empty datamodels", `{"datamodels_dir": ""}`, config.ErrDatamodelsDirEmpty},
		{"bad level", `{"log_level": "loud"}`, config.ErrConfigInvalid},
		{"bad format", `{"log_format": "xml"}`, config.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "s.json"), tt.content)

			_, err := config.Load(config.LoadInput{WorkDir: dir, SettingsPath: "s.json", Env: isolatedEnv(dir)})
			if !assert.ErrorIs(t, err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
		})
	}
}

func Test_Load_Fails_With_NotFound_When_Explicit_Settings_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := config.Load(config.LoadInput{WorkDir: dir, SettingsPath: "nope.json", Env: isolatedEnv(dir)})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func Test_Format_Renders_Serialized_Keys_When_Called(t *testing.T) {
	t.Parallel()

	out, err := config.Format(config.Default())
	require.NoError(t, err)

	assert.Contains(t, out, `"config_file": "/etc/openmediavault/config.xml"`)
	assert.Contains(t, out, `"datamodels_dir": "/usr/share/openmediavault/datamodels"`)
	assert.NotContains(t, out, "audit_db")
}
