package cli_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/internal/cli"
)

func Test_History_Lists_Changes_Newest_First_When_Audit_DB_Configured(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	id := c.MustRun("--audit-db", "audit.sqlite", "create", notificationModel, `{"id": "nut"}`)
	c.MustRun("--audit-db", "audit.sqlite", "delete", notificationModel, "-u", loadavgUUID)
	c.MustRun("--audit-db", "audit.sqlite", "update", "conf.system.time", `{"timezone": "UTC"}`)

	lines := strings.Split(c.MustRun("--audit-db", "audit.sqlite", "history"), "\n")
	require.Len(t, lines, 3)

	assert.True(t, strings.HasPrefix(lines[0], "3\t"), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "\tset\tconf.system.time\t-"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "\tdelete\t"+notificationModel+"\t"+loadavgUUID), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "\tset\t"+notificationModel+"\t"+id), lines[2])

	only := c.MustRun("--audit-db", "audit.sqlite", "history", "--model", notificationModel, "-n", "1")
	assert.True(t, strings.HasPrefix(only, "2\t"), only)
	assert.NotContains(t, only, "\n")
}

func Test_History_Prints_Object_Values_When_JSON_Requested(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("--audit-db", "audit.sqlite", "update", notificationModel, `{"uuid": "`+loadavgUUID+`", "enable": false}`)

	stdout := c.MustRun("--audit-db", "audit.sqlite", "history", "--json")

	var entries []struct {
		Kind   string          `json:"kind"`
		Model  string          `json:"model"`
		Before json.RawMessage `json:"before"`
		After  json.RawMessage `json:"after"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)

	assert.Equal(t, "set", entries[0].Kind)
	assert.JSONEq(t, `{"uuid": "`+loadavgUUID+`", "id": "monitloadavg", "enable": true}`, string(entries[0].Before))
	assert.JSONEq(t, `{"uuid": "`+loadavgUUID+`", "id": "monitloadavg", "enable": false}`, string(entries[0].After))
}

func Test_History_Prints_Empty_List_When_Nothing_Recorded(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	assert.Equal(t, "", c.MustRun("--audit-db", "audit.sqlite", "history"))
	assert.Equal(t, "[]", c.MustRun("--audit-db", "audit.sqlite", "history", "--json"))
}

func Test_History_Omits_Changes_When_Transaction_Rolled_Back(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	// The unreferenced mount point comes first: it is removed and journaled
	// before the referenced one is refused.
	doc := strings.Replace(cli.TestDocument, "<uuid>"+usedMntent+"</uuid>", "<uuid>tmp</uuid>", 1)
	doc = strings.Replace(doc, "<uuid>"+spareMntent+"</uuid>", "<uuid>"+usedMntent+"</uuid>", 1)
	doc = strings.Replace(doc, "<uuid>tmp</uuid>", "<uuid>"+spareMntent+"</uuid>", 1)
	c.WriteDocument(doc)

	_, stderr, code := c.Run("--audit-db", "audit.sqlite", "delete", mountpointModel, "--filter", `{"operator": "stringStartsWith", "arg0": "dir", "arg1": "/srv/"}`)
	assert.Equal(t, 1, code)
	cli.AssertContains(t, stderr, "configuration object is referenced")
	assert.Equal(t, doc, c.ReadDocument())

	assert.Equal(t, "", c.MustRun("--audit-db", "audit.sqlite", "history"))

	c.MustRun("--audit-db", "audit.sqlite", "delete", mountpointModel, "-u", spareMntent)

	line := c.MustRun("--audit-db", "audit.sqlite", "history")
	assert.True(t, strings.HasSuffix(line, "\tdelete\t"+mountpointModel+"\t"+spareMntent), line)
}

func Test_History_Fails_When_No_Audit_DB_Configured(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("history")

	cli.AssertContains(t, stderr, "no audit_db configured")
}
