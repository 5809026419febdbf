package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/confdb/internal/config"
)

// CLI provides a clean interface for running CLI commands in tests.
// It manages a temp directory holding a config document, data models and
// the environment pointing at them.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// TestDocument is the config document NewCLI starts with.
const TestDocument = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <system>
    <time>
      <timezone>Europe/Berlin</timezone>
      <ntp>
        <enable>1</enable>
        <timeservers>pool.ntp.org</timeservers>
      </ntp>
    </time>
    <notification>
      <notifications>
        <notification>
          <uuid>03dc067d-1310-45b5-899f-b471a0ae9233</uuid>
          <id>monitprocevents</id>
          <enable>1</enable>
        </notification>
        <notification>
          <uuid>c1cd54af-660d-4311-8e21-2a19420355bb</uuid>
          <id>monitloadavg</id>
          <enable>1</enable>
        </notification>
        <notification>
          <uuid>e6f5d4c3-b2a1-4098-8765-43210fedcba9</uuid>
          <id>smartmontools</id>
          <enable>0</enable>
        </notification>
      </notifications>
    </notification>
    <fstab>
      <mntent>
        <uuid>9d8c7b6a-5f4e-4d3c-b2a1-0f9e8d7c6b5a</uuid>
        <dir>/srv/disk1</dir>
      </mntent>
      <mntent>
        <uuid>8c7b6a5f-4e3d-4c2b-a1f0-9e8d7c6b5a4f</uuid>
        <dir>/srv/disk2</dir>
      </mntent>
    </fstab>
    <shares>
      <sharedfolder>
        <uuid>f1e2d3c4-b5a6-4978-8a9b-0c1d2e3f4a5b</uuid>
        <name>Movies</name>
        <mntentref>9d8c7b6a-5f4e-4d3c-b2a1-0f9e8d7c6b5a</mntentref>
      </sharedfolder>
    </shares>
  </system>
</config>
`

var testModels = map[string]string{
	"conf.system.time.json": `{
		"type": "config",
		"id": "conf.system.time",
		"queryinfo": {"xpath": "//system/time", "iterable": false},
		"properties": {
			"timezone": {"type": "string", "default": "Etc/UTC"},
			"ntp": {
				"type": "object",
				"properties": {
					"enable": {"type": "boolean"},
					"timeservers": {"type": "string"}
				}
			}
		}
	}`,
	"conf.system.notification.notification.json": `{
		"type": "config",
		"id": "conf.system.notification.notification",
		"queryinfo": {
			"xpath": "//system/notification/notifications/notification",
			"iterable": true,
			"idproperty": "uuid"
		},
		"properties": {
			"uuid": {"type": "string"},
			"id": {"type": "string"},
			"enable": {"type": "boolean", "default": false}
		}
	}`,
	"conf.system.filesystem.mountpoint.json": `{
		"type": "config",
		"id": "conf.system.filesystem.mountpoint",
		"queryinfo": {
			"xpath": "//system/fstab/mntent",
			"iterable": true,
			"refproperty": "mntentref"
		},
		"properties": {
			"uuid": {"type": "string"},
			"dir": {"type": "string"}
		}
	}`,
	"conf.system.sharedfolder.json": `{
		"type": "config",
		"id": "conf.system.sharedfolder",
		"queryinfo": {
			"xpath": "//system/shares/sharedfolder",
			"iterable": true,
			"refproperty": "sharedfolderref"
		},
		"properties": {
			"uuid": {"type": "string"},
			"name": {"type": "string"},
			"mntentref": {"type": "string"}
		}
	}`,
}

// NewCLI creates a new test CLI with a temp directory holding
// [TestDocument] and the matching data models.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	dir := t.TempDir()
	models := filepath.Join(dir, "datamodels")

	if err := os.Mkdir(models, 0o755); err != nil {
		t.Fatalf("mkdir datamodels: %v", err)
	}

	for name, content := range testModels {
		if err := os.WriteFile(filepath.Join(models, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write model %s: %v", name, err)
		}
	}

	c := &CLI{
		t:   t,
		Dir: dir,
		Env: map[string]string{
			config.EnvSettings:     filepath.Join(dir, "no-system-settings.json"),
			config.EnvDocumentPath: filepath.Join(dir, "config.xml"),
			config.EnvDatamodels:   models,
		},
	}

	c.WriteDocument(TestDocument)

	return c
}

// Run executes the CLI with the given args and returns stdout, stderr, and exit code.
// Args should not include "confdbadm" or "--cwd" - those are added automatically.
func (r *CLI) Run(args ...string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"confdbadm", "--cwd", r.Dir}, args...)
	code := Run(nil, &outBuf, &errBuf, fullArgs, r.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

// RunWithInput executes the CLI with stdin and returns stdout, stderr, and exit code.
// stdin must be a string or io.Reader; panics otherwise.
func (r *CLI) RunWithInput(stdin any, args ...string) (string, string, int) {
	var inReader io.Reader
	switch v := stdin.(type) {
	case string:
		inReader = strings.NewReader(v)
	case io.Reader:
		inReader = v
	default:
		panic(fmt.Sprintf("stdin must be string or io.Reader, got %T", stdin))
	}

	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"confdbadm", "--cwd", r.Dir}, args...)
	code := Run(inReader, &outBuf, &errBuf, fullArgs, r.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Also fails if stdout is not empty. Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	if stdout != "" {
		r.t.Fatalf("command %v failed but stdout should be empty\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// DocumentPath returns the path of the config document.
func (r *CLI) DocumentPath() string {
	return r.Env[config.EnvDocumentPath]
}

// ReadDocument returns the content of the config document.
func (r *CLI) ReadDocument() string {
	r.t.Helper()

	content, err := os.ReadFile(r.DocumentPath())
	if err != nil {
		r.t.Fatalf("failed to read document: %v", err)
	}

	return string(content)
}

// WriteDocument replaces the config document.
func (r *CLI) WriteDocument(content string) {
	r.t.Helper()

	err := os.WriteFile(r.DocumentPath(), []byte(content), 0o600)
	if err != nil {
		r.t.Fatalf("failed to write document: %v", err)
	}
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
