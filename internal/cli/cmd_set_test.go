package cli_test

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/confdb/internal/cli"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func Test_Create_Prints_New_Identity_When_Model_Is_Collection(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	id := c.MustRun("create", notificationModel, `{"id": "nut", /* ups */ "enable": true,}`)

	require.Regexp(t, uuidPattern, id)

	stdout := c.MustRun("read", notificationModel, "--uuid", id)
	assert.JSONEq(t, `{"uuid": "`+id+`", "id": "nut", "enable": true}`, stdout)

	ids := c.MustRun("list-ids", notificationModel)
	cli.AssertContains(t, ids, id)
}

func Test_Create_Replaces_Singleton_When_Model_Not_Iterable(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("create", "conf.system.time", `{"timezone": "UTC"}`)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "UTC", got["timezone"])
	assert.Equal(t, map[string]any{"enable": false, "timeservers": ""}, got["ntp"])

	cli.AssertContains(t, c.ReadDocument(), "<timezone>UTC</timezone>")
	cli.AssertNotContains(t, c.ReadDocument(), "Europe/Berlin")
}

func Test_Create_Refuses_Identity_When_Collection_Value_Has_One(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("create", notificationModel, `{"uuid": "mine", "id": "nut"}`)

	cli.AssertContains(t, stderr, "use update")
	assert.Equal(t, cli.TestDocument, c.ReadDocument())
}

func Test_Create_Leaves_Document_Untouched_When_Unique_Check_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("create", notificationModel, `{"id": "smartmontools"}`, "--unique", "id")

	cli.AssertContains(t, stderr, `id="smartmontools" is already used`)
	assert.Equal(t, cli.TestDocument, c.ReadDocument())
}

func Test_Create_Fails_When_Value_Does_Not_Fit_Property(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("create", notificationModel, `{"enable": "maybe"}`)
	cli.AssertContains(t, stderr, "invalid property value")

	stderr = c.MustFail("create", notificationModel, `{"colour": "red"}`)
	cli.AssertContains(t, stderr, "unknown property")

	stderr = c.MustFail("create", notificationModel, `[1, 2]`)
	cli.AssertContains(t, stderr, "values must be a JSON object")

	assert.Equal(t, cli.TestDocument, c.ReadDocument())
}

func Test_Update_Changes_Object_When_Identity_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("update", notificationModel, `{"uuid": "`+loadavgUUID+`", "enable": false}`)

	assert.JSONEq(t, `{"uuid": "`+loadavgUUID+`", "id": "monitloadavg", "enable": false}`, stdout)

	stdout = c.MustRun("read", notificationModel, "-u", loadavgUUID)
	assert.JSONEq(t, `{"uuid": "`+loadavgUUID+`", "id": "monitloadavg", "enable": false}`, stdout)

	stdout = c.MustRun("update", "conf.system.time", `{"ntp.enable": false}`)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "Europe/Berlin", got["timezone"])
	assert.Equal(t, map[string]any{"enable": false, "timeservers": "pool.ntp.org"}, got["ntp"])
}

func Test_Update_Fails_When_Identity_Missing_Or_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("update", notificationModel, `{"enable": false}`)
	cli.AssertContains(t, stderr, "identity property missing: uuid")

	stderr = c.MustFail("update", notificationModel, `{"uuid": "nope", "enable": false}`)
	cli.AssertContains(t, stderr, "configuration object not found")

	assert.Equal(t, cli.TestDocument, c.ReadDocument())
}

func Test_Update_Ignores_Own_Value_When_Unique_Checked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	c.MustRun("update", notificationModel, `{"uuid": "`+loadavgUUID+`", "id": "monitloadavg"}`, "--unique", "id")

	stderr := c.MustFail("update", notificationModel, `{"uuid": "`+loadavgUUID+`", "id": "smartmontools"}`, "--unique", "id")
	cli.AssertContains(t, stderr, "already used")
}
