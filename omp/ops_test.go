package omp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smnsjas/go-omp/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name string
		cmd  *command
		want string
	}{
		{
			name: "bare",
			cmd:  newCommand("get_preferences"),
			want: `<get_preferences/>`,
		},
		{
			name: "attributes keep order",
			cmd:  newCommand("get_report").WithAttr("format", "nbe").WithAttr("report_id", "r1"),
			want: `<get_report format="nbe" report_id="r1"/>`,
		},
		{
			name: "expanded",
			cmd:  newCommand("modify_task").WithAttr("task_id", "t").Expanded(),
			want: `<modify_task task_id="t"></modify_task>`,
		},
		{
			name: "escaped",
			cmd:  newCommand("x").WithAttr("a", `"<&>"`).WithElement("b", "1 < 2 & 3"),
			want: `<x a="&#34;&lt;&amp;&gt;&#34;"><b>1 &lt; 2 &amp; 3</b></x>`,
		},
		{
			name: "empty element",
			cmd:  newCommand("x").WithElement("comment", ""),
			want: `<x><comment></comment></x>`,
		},
		{
			name: "base64",
			cmd:  newCommand("x").WithBase64("rcfile", []byte("abc")),
			want: `<x><rcfile>YWJj</rcfile></x>`,
		},
		{
			name: "empty base64",
			cmd:  newCommand("x").WithBase64("rcfile", nil),
			want: `<x><rcfile></rcfile></x>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestClient_Requests(t *testing.T) {
	ctx := context.Background()
	name, comment := "renamed", ""

	tests := []struct {
		name string
		call func(c *Client) error
		want string
	}{
		{
			name: "authenticate",
			call: func(c *Client) error { return c.Authenticate(ctx, "om", "s3<cr>t") },
			want: `<authenticate><credentials><username>om</username><password>s3&lt;cr&gt;t</password></credentials></authenticate>`,
		},
		{
			name: "start task",
			call: func(c *Client) error { return c.StartTask(ctx, "t1") },
			want: `<start_task task_id="t1"/>`,
		},
		{
			name: "modify task rcfile only",
			call: func(c *Client) error {
				return c.ModifyTask(ctx, "t1", ModifyTaskOptions{RCFile: []byte("abc")})
			},
			want: `<modify_task task_id="t1"><rcfile>YWJj</rcfile></modify_task>`,
		},
		{
			name: "modify task empty rcfile",
			call: func(c *Client) error {
				return c.ModifyTask(ctx, "t1", ModifyTaskOptions{RCFile: []byte{}})
			},
			want: `<modify_task task_id="t1"><rcfile></rcfile></modify_task>`,
		},
		{
			name: "modify task name and comment",
			call: func(c *Client) error {
				return c.ModifyTask(ctx, "t1", ModifyTaskOptions{Name: &name, Comment: &comment})
			},
			want: `<modify_task task_id="t1"><name>renamed</name><comment></comment></modify_task>`,
		},
		{
			name: "modify task nothing",
			call: func(c *Client) error { return c.ModifyTask(ctx, "t1", ModifyTaskOptions{}) },
			want: `<modify_task task_id="t1"></modify_task>`,
		},
		{
			name: "delete task",
			call: func(c *Client) error { return c.DeleteTask(ctx, "t1") },
			want: `<delete_task task_id="t1"/>`,
		},
		{
			name: "create target",
			call: func(c *Client) error { return c.CreateTarget(ctx, "lan", "10.0.0.0/24", "office") },
			want: `<create_target><name>lan</name><hosts>10.0.0.0/24</hosts><comment>office</comment></create_target>`,
		},
		{
			name: "create target without comment",
			call: func(c *Client) error { return c.CreateTarget(ctx, "lan", "10.0.0.1", "") },
			want: `<create_target><name>lan</name><hosts>10.0.0.1</hosts></create_target>`,
		},
		{
			name: "delete target",
			call: func(c *Client) error { return c.DeleteTarget(ctx, "lan") },
			want: `<delete_target><name>lan</name></delete_target>`,
		},
		{
			name: "create config",
			call: func(c *Client) error { return c.CreateConfig(ctx, "full", "deep", []byte("abc")) },
			want: `<create_config><name>full</name><comment>deep</comment><rcfile>YWJj</rcfile></create_config>`,
		},
		{
			name: "create config without comment",
			call: func(c *Client) error { return c.CreateConfig(ctx, "full", "", nil) },
			want: `<create_config><name>full</name><rcfile></rcfile></create_config>`,
		},
		{
			name: "delete config",
			call: func(c *Client) error { return c.DeleteConfig(ctx, "full") },
			want: `<delete_config><name>full</name></delete_config>`,
		},
		{
			name: "get status all",
			call: func(c *Client) error { _, err := c.GetStatus(ctx, StatusQuery{}); return err },
			want: `<get_status rcfile="0"/>`,
		},
		{
			name: "get status one with rcfile",
			call: func(c *Client) error {
				_, err := c.GetStatus(ctx, StatusQuery{TaskID: "t1", IncludeRCFile: true})
				return err
			},
			want: `<get_status task_id="t1" rcfile="1"/>`,
		},
		{
			name: "get report",
			call: func(c *Client) error { _, err := c.GetReport(ctx, "r1"); return err },
			want: `<get_report format="nbe" report_id="r1"/>`,
		},
		{
			name: "delete report",
			call: func(c *Client) error { return c.DeleteReport(ctx, "r1") },
			want: `<delete_report report_id="r1"/>`,
		},
		{
			name: "get preferences",
			call: func(c *Client) error { _, err := c.GetPreferences(ctx); return err },
			want: `<get_preferences/>`,
		},
		{
			name: "get certificates",
			call: func(c *Client) error { _, err := c.GetCertificates(ctx); return err },
			want: `<get_certificates/>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, conn, _ := newTestClient(t, `<response status="200"/>`)
			require.NoError(t, tt.call(c))
			assert.Equal(t, []string{tt.want}, conn.Requests())
		})
	}
}

func TestClient_RemoteFailure(t *testing.T) {
	c, _, _ := newTestClient(t, `<delete_report_response status="404" status_text="Failed to find report"/>`)

	err := c.DeleteReport(context.Background(), "r1")
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 404, code)
}

func TestAuthenticate_Rejected(t *testing.T) {
	c, _, _ := newTestClient(t, `<authenticate_response status="400"/>`)

	err := c.Authenticate(context.Background(), "om", "bad")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 400, code)
}

func TestCreateTask(t *testing.T) {
	c, conn, _ := newTestClient(t,
		`<create_task_response status="201"><task_id>254cd3ef</task_id></create_task_response>`)

	id, err := c.CreateTask(context.Background(), TaskSpec{
		Name:    "scan",
		Comment: "nightly",
		Config:  "Full and fast",
		Target:  "lan",
	})
	require.NoError(t, err)
	assert.Equal(t, "254cd3ef", id)
	assert.Equal(t, []string{
		`<create_task><config>Full and fast</config><target>lan</target><name>scan</name><comment>nightly</comment></create_task>`,
	}, conn.Requests())
}

func TestCreateTask_MissingID(t *testing.T) {
	c, _, _ := newTestClient(t, `<create_task_response status="201"/>`)

	id, err := c.CreateTask(context.Background(), TaskSpec{Name: "scan"})
	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestCreateTask_Rejected(t *testing.T) {
	c, _, _ := newTestClient(t,
		`<create_task_response status="400"><task_id>ignored</task_id></create_task_response>`)

	_, err := c.CreateTask(context.Background(), TaskSpec{Name: "scan"})
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 400, code)
}

func TestCreateTaskFromRC(t *testing.T) {
	c, conn, _ := newTestClient(t,
		`<create_task_response status="201"><task_id>t9</task_id></create_task_response>`)

	id, err := c.CreateTaskFromRC(context.Background(), nil, "n", "c")
	require.NoError(t, err)
	assert.Equal(t, "t9", id)
	assert.Equal(t, []string{
		`<create_task><rcfile></rcfile><name>n</name><comment>c</comment></create_task>`,
	}, conn.Requests())
}

func TestCreateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.rc")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	c, conn, _ := newTestClient(t,
		`<create_task_response status="201"><task_id>t9</task_id></create_task_response>`,
		`<create_config_response status="201"/>`)

	id, err := c.CreateTaskFromFile(context.Background(), path, "n", "c")
	require.NoError(t, err)
	assert.Equal(t, "t9", id)

	require.NoError(t, c.CreateConfigFromFile(context.Background(), "cfg", "", path))
	assert.Equal(t, []string{
		`<create_task><rcfile>YWJj</rcfile><name>n</name><comment>c</comment></create_task>`,
		`<create_config><name>cfg</name><rcfile>YWJj</rcfile></create_config>`,
	}, conn.Requests())

	_, err = c.CreateTaskFromFile(context.Background(), filepath.Join(t.TempDir(), "missing"), "n", "c")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Len(t, conn.Requests(), 2, "nothing sent for unreadable file")
}

func TestGetStatus_ReturnsEntity(t *testing.T) {
	c, _, _ := newTestClient(t,
		`<get_status_response status="200"><task id="t1"><name>scan</name><status>Running</status></task></get_status_response>`)

	resp, err := c.GetStatus(context.Background(), StatusQuery{TaskID: "t1"})
	require.NoError(t, err)
	state, ok := TaskStatus(resp)
	assert.True(t, ok)
	assert.Equal(t, "Running", state)
}

func TestCreateTarget_Twice(t *testing.T) {
	const ok = `<create_target_response status="201" status_text="OK, resource created"/>`
	c, conn, _ := newTestClient(t, ok, ok)
	ctx := context.Background()

	rec := &sliceRecorder{}
	c.recorder = rec

	require.NoError(t, c.CreateTarget(ctx, "lan", "10.0.0.1", ""))
	first := parse(t, rec.events[1].data)
	require.NoError(t, c.CreateTarget(ctx, "lan", "10.0.0.1", ""))
	second := parse(t, rec.events[3].data)

	assert.True(t, entity.Equal(first, second))
	assert.Equal(t, conn.Requests()[0], conn.Requests()[1])
	assert.Equal(t, `<create_target_response status="201" status_text="OK, resource created"></create_target_response>`, first.String())
}

func TestGetStatus_ResponsesAreIndependent(t *testing.T) {
	c, _, _ := newTestClient(t,
		`<get_status_response status="200"><task id="a"><status>Running</status></task></get_status_response>`,
		`<get_status_response status="200"><task id="b"><status>Done</status></task></get_status_response>`)
	ctx := context.Background()

	first, err := c.GetStatus(ctx, StatusQuery{})
	require.NoError(t, err)
	snapshot := first.String()

	second, err := c.GetStatus(ctx, StatusQuery{})
	require.NoError(t, err)

	assert.Equal(t, snapshot, first.String(), "second read must not touch the first tree")
	assert.False(t, entity.Equal(first, second))
}

func TestUntilReady(t *testing.T) {
	c, conn, _ := newTestClient(t,
		`<get_preferences_response status="503"/>`,
		`<get_preferences_response status="503"/>`,
		`<get_preferences_response status="200"><preference><name>max_hosts</name></preference></get_preferences_response>`)

	resp, err := UntilReady(context.Background(), c.GetPreferences)
	require.NoError(t, err)
	assert.NotNil(t, resp.Child("preference"))
	assert.Len(t, conn.Requests(), 3)
}

func TestUntilReady_OtherErrorStops(t *testing.T) {
	c, conn, _ := newTestClient(t,
		`<get_preferences_response status="503"/>`,
		`<get_preferences_response status="500"/>`,
		`<get_preferences_response status="200"/>`)

	_, err := UntilReady(context.Background(), c.GetPreferences)
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 500, code)
	assert.Len(t, conn.Requests(), 2)
}

func TestUntilReady_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := UntilReady(ctx, func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return 0, &RemoteError{Op: "x", Code: StatusServiceUnavailable}
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 3, calls)
}
