package cli_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calvinalkan/confdb/internal/cli"
)

func Test_Delete_Removes_Object_When_UUID_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("delete", notificationModel, "--uuid", loadavgUUID)

	assert.Equal(t, loadavgUUID, stdout)
	cli.AssertNotContains(t, c.ReadDocument(), "monitloadavg")

	stderr := c.MustFail("read", notificationModel, "--uuid", loadavgUUID)
	cli.AssertContains(t, stderr, "not found")
}

func Test_Delete_Refuses_When_Object_Still_Referenced(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("delete", mountpointModel, "--uuid", usedMntent)

	cli.AssertContains(t, stderr, "configuration object is referenced")
	cli.AssertContains(t, stderr, "--force")
	assert.Equal(t, cli.TestDocument, c.ReadDocument())

	stdout := c.MustRun("delete", mountpointModel, "--uuid", usedMntent, "--force")
	assert.Equal(t, usedMntent, stdout)
	cli.AssertNotContains(t, c.ReadDocument(), "/srv/disk1")
}

func Test_Delete_Removes_Unreferenced_Object_When_Referenceable(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("delete", mountpointModel, "-u", spareMntent)

	assert.Equal(t, spareMntent, stdout)
	cli.AssertNotContains(t, c.ReadDocument(), "/srv/disk2")
	cli.AssertContains(t, c.ReadDocument(), "/srv/disk1")
}

func Test_Delete_Removes_All_Matches_When_Filter_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("delete", notificationModel, "--filter", `{"operator": "stringStartsWith", "arg0": "id", "arg1": "monit"}`)

	assert.Equal(t, "03dc067d-1310-45b5-899f-b471a0ae9233\n"+loadavgUUID, stdout)
	assert.Equal(t, "e6f5d4c3-b2a1-4098-8765-43210fedcba9", c.MustRun("list-ids", notificationModel))
}

func Test_Delete_Rolls_Back_Earlier_Removals_When_Later_Object_Refused(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	// Put the unreferenced mount point first so it is removed before the
	// referenced one is refused.
	doc := strings.Replace(cli.TestDocument, "<dir>/srv/disk1</dir>", "<dir>/srv/tmp</dir>", 1)
	doc = strings.Replace(doc, "<dir>/srv/disk2</dir>", "<dir>/srv/disk1</dir>", 1)
	doc = strings.Replace(doc, "<dir>/srv/tmp</dir>", "<dir>/srv/disk2</dir>", 1)
	doc = strings.Replace(doc, "<uuid>"+usedMntent+"</uuid>", "<uuid>tmp</uuid>", 1)
	doc = strings.Replace(doc, "<uuid>"+spareMntent+"</uuid>", "<uuid>"+usedMntent+"</uuid>", 1)
	doc = strings.Replace(doc, "<uuid>tmp</uuid>", "<uuid>"+spareMntent+"</uuid>", 1)
	c.WriteDocument(doc)

	assert.Equal(t, spareMntent+"\n"+usedMntent, c.MustRun("list-ids", mountpointModel))

	stdout, stderr, code := c.Run("delete", mountpointModel, "--filter", `{"operator": "stringStartsWith", "arg0": "dir", "arg1": "/srv/"}`)

	assert.Equal(t, 1, code)
	assert.Equal(t, spareMntent+"\n", stdout)
	cli.AssertContains(t, stderr, "configuration object is referenced")
	assert.Equal(t, doc, c.ReadDocument())
}

func Test_Delete_Fails_When_Selected_Object_Has_No_UUID(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	doc := strings.Replace(cli.TestDocument, "<uuid>"+loadavgUUID+"</uuid>", "", 1)
	c.WriteDocument(doc)

	stderr := c.MustFail("delete", notificationModel, "--filter", `{"operator": "stringEquals", "arg0": "id", "arg1": "monitloadavg"}`)

	cli.AssertContains(t, stderr, "object has no identity")
	assert.Equal(t, doc, c.ReadDocument())
}

func Test_Delete_Fails_When_Selection_Flags_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("delete", notificationModel)
	cli.AssertContains(t, stderr, "exactly one of --uuid or --filter")

	stderr = c.MustFail("delete", notificationModel, "-u", loadavgUUID, "-f", `{"operator": "stringEquals", "arg0": "id", "arg1": "x"}`)
	cli.AssertContains(t, stderr, "exactly one of --uuid or --filter")

	stderr = c.MustFail("delete", "conf.system.time", "-u", "x")
	cli.AssertContains(t, stderr, "data model is not iterable")

	stderr = c.MustFail("delete", notificationModel, "-f", `{"operator": "stringEquals", "arg0": "id", "arg1": "nut"}`)
	cli.AssertContains(t, stderr, "configuration object not found")

	assert.Equal(t, cli.TestDocument, c.ReadDocument())
}

func Test_Delete_Leaves_No_Backup_When_Finished(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("delete", notificationModel, "-u", loadavgUUID)
	c.MustFail("delete", mountpointModel, "-u", usedMntent)

	entries, err := filepath.Glob(filepath.Join(c.Dir, ".config.xml.backup-*"))
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
