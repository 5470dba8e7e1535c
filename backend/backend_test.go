package backend

import (
	"bytes"
	stdcontext "context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/srdaspradeep-gif/DMsDoc/core"
	"github.com/srdaspradeep-gif/DMsDoc/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	t     *testing.T
	db    *core.CoreDB
	url   string
	users map[string]string // username -> id
}

func newTestServer(t *testing.T) *testServer {

	var dsn = "file:" + filepath.Join(t.TempDir(), "test.sqlite3") + "?_busy_timeout=10000&_journal=WAL&_txlock=immediate&_fk=1"
	sqlDB, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	var log = zaptest.NewLogger(t)
	var db = sqldb.NewCoreDB(sqlDB)
	db.Log = log
	db.Init()

	var srv = httptest.NewServer(NewRouter(db, scs.New(), log))
	t.Cleanup(srv.Close)

	var ts = &testServer{
		t:     t,
		db:    db,
		url:   srv.URL,
		users: map[string]string{},
	}

	var ctx = stdcontext.Background()
	for name, perm := range map[string]core.Permission{
		"admin":    core.PermAdmin,
		"alice":    core.PermApprove,
		"bob":      core.PermApprove,
		"reader":   core.PermRead,
		"outsider": core.PermNone,
	} {
		u, err := db.InsertUser(ctx, name, name+"@example.com")
		require.NoError(t, err)
		require.NoError(t, db.SetPassword(ctx, u.ID, name+"-password"))
		require.NoError(t, db.Grant(ctx, u.ID, core.ModuleApprovals, perm))
		ts.users[name] = u.ID
	}
	return ts
}

// client is a logged-in user agent.
type client struct {
	*testServer
	http *http.Client
}

func (ts *testServer) anonymous() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(ts.t, err)
	return &client{
		testServer: ts,
		http:       &http.Client{Jar: jar},
	}
}

func (ts *testServer) login(name string) *client {
	var c = ts.anonymous()
	var status = c.do(http.MethodPost, "/login", map[string]string{
		"username": name,
		"password": name + "-password",
	}, nil)
	require.Equal(ts.t, http.StatusOK, status)
	return c
}

// do sends body as JSON and decodes the response into result, if not nil.
func (c *client) do(method, path string, body interface{}, result interface{}) int {

	var reader = &bytes.Buffer{}
	if body != nil {
		require.NoError(c.t, json.NewEncoder(reader).Encode(body))
	}

	req, err := http.NewRequest(method, c.url+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if result != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(result))
	}
	return resp.StatusCode
}

func TestStatusOf(t *testing.T) {
	var tests = []struct {
		err    error
		status int
	}{
		{ErrNotLoggedIn, http.StatusUnauthorized},
		{core.ErrAuth, http.StatusUnauthorized},
		{fmt.Errorf("file: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrForbidden, http.StatusForbidden},
		{core.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("%w: step is already approved", core.ErrConflict), http.StatusConflict},
		{core.ErrInvalid, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, test := range tests {
		assert.Equal(t, test.status, statusOf(test.err), test.err.Error())
	}
}

func TestLogin(t *testing.T) {

	var ts = newTestServer(t)
	var c = ts.anonymous()

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/workflows", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}, nil))

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/login", map[string]string{
		"user": "alice",
	}, nil))

	var user userView
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/login", map[string]string{
		"username": "alice",
		"password": "alice-password",
	}, &user))
	assert.Equal(t, ts.users["alice"], user.ID)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/workflows", nil, nil))
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/workflows", nil, nil))
}

func TestPermissions(t *testing.T) {

	var ts = newTestServer(t)

	var outsider = ts.login("outsider")
	assert.Equal(t, http.StatusForbidden, outsider.do(http.MethodGet, "/workflows", nil, nil))

	var reader = ts.login("reader")
	assert.Equal(t, http.StatusOK, reader.do(http.MethodGet, "/my-approvals", nil, nil))
	assert.Equal(t, http.StatusForbidden, reader.do(http.MethodPost, "/folders", folderRequest{Name: "x"}, nil))

	var alice = ts.login("alice")
	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodPost, "/folder-rules", ruleRequest{}, nil))
	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodPut, "/users/"+ts.users["outsider"]+"/permission", accessRequest{Permission: "read"}, nil))

	var admin = ts.login("admin")
	assert.Equal(t, http.StatusOK, admin.do(http.MethodPut, "/users/"+ts.users["outsider"]+"/permission", accessRequest{Permission: "read"}, nil))
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPut, "/users/"+ts.users["outsider"]+"/permission", accessRequest{Permission: "root"}, nil))

	assert.Equal(t, http.StatusOK, outsider.do(http.MethodGet, "/workflows", nil, nil))

	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodGet, "/nothing", nil, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, admin.do(http.MethodPut, "/workflows", nil, nil))
}

func TestSerialWorkflowOverHTTP(t *testing.T) {

	var ts = newTestServer(t)
	var admin = ts.login("admin")
	var alice = ts.login("alice")
	var bob = ts.login("bob")

	var folder folderView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/folders", folderRequest{Name: "Contracts"}, &folder))

	var serial = core.Serial
	var subfolders = true
	var text = "Check *all* pages"
	var rule ruleView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/folder-rules", ruleRequest{
		FolderID:          folder.ID,
		Mode:              &serial,
		ResolutionText:    &text,
		ApplyToSubfolders: &subfolders,
		Approvers: []core.ApproverInput{
			{UserID: ts.users["alice"], OrderIndex: 0},
			{UserID: ts.users["bob"], OrderIndex: 1},
		},
	}, &rule))
	assert.Equal(t, "serial", rule.Mode)
	assert.Len(t, rule.Approvers, 2)

	assert.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/folder-rules", ruleRequest{
		FolderID:  folder.ID,
		Approvers: []core.ApproverInput{{UserID: ts.users["alice"]}},
	}, nil))

	var sub folderView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/folders", folderRequest{ParentID: folder.ID, Name: "2024"}, &sub))

	var applicable *ruleView
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/folders/"+sub.ID+"/rule", nil, &applicable))
	require.NotNil(t, applicable)
	assert.Equal(t, rule.ID, applicable.ID)

	var file fileView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/files", fileRequest{FolderID: sub.ID, Name: "lease.pdf"}, &file))
	require.NotNil(t, file.Workflow)
	var wf = file.Workflow
	assert.Equal(t, "pending", wf.Status)
	assert.Equal(t, "lease.pdf", wf.FileName)
	assert.Equal(t, "<p>Check <em>all</em> pages</p>\n", wf.ResolutionHTML)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "alice", wf.Steps[0].ApproverUsername)

	var pending []pendingView
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/my-approvals", nil, &pending))
	assert.Empty(t, pending)

	// not bob's turn yet
	assert.Equal(t, http.StatusConflict, bob.do(http.MethodPost, "/steps/"+wf.Steps[1].ID+"/decision", decisionRequest{Decision: "approve"}, nil))
	// not alice's step
	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodPost, "/steps/"+wf.Steps[1].ID+"/decision", decisionRequest{Decision: "approve"}, nil))
	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodPost, "/steps/"+wf.Steps[0].ID+"/decision", decisionRequest{Decision: "maybe"}, nil))
	assert.Equal(t, http.StatusNotFound, alice.do(http.MethodPost, "/steps/missing/decision", decisionRequest{Decision: "approve"}, nil))

	var step stepView
	require.Equal(t, http.StatusOK, alice.do(http.MethodPost, "/steps/"+wf.Steps[0].ID+"/decision", decisionRequest{Decision: "approve", Comment: "fine"}, &step))
	assert.Equal(t, "approved", step.Status)
	assert.Equal(t, "fine", step.Comment)

	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/my-approvals", nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, wf.Steps[1].ID, pending[0].Step.ID)
	assert.Equal(t, "lease.pdf", pending[0].Workflow.FileName)

	var notifications []notificationView
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/notifications", nil, &notifications))
	require.Len(t, notifications, 1)
	assert.Equal(t, "Your Turn to Approve", notifications[0].Title)
	assert.Equal(t, "approval_assigned", notifications[0].Type)

	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/steps/"+wf.Steps[1].ID+"/decision", decisionRequest{Decision: "approve"}, &step))

	var stored workflowView
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/workflows/"+wf.ID, nil, &stored))
	assert.Equal(t, "approved", stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	// the initiator can't cancel a finished workflow
	assert.Equal(t, http.StatusConflict, admin.do(http.MethodDelete, "/workflows/"+wf.ID, nil, nil))

	var list []workflowView
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/workflows?status=approved", nil, &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodGet, "/workflows?status=done", nil, nil))
	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodGet, "/workflows?limit=ten", nil, nil))

	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodDelete, "/workflows/"+wf.ID+"/purge", nil, nil))
	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodDelete, "/workflows/"+wf.ID+"/purge", nil, nil))
	assert.Equal(t, http.StatusNotFound, alice.do(http.MethodGet, "/workflows/"+wf.ID, nil, nil))
}

func TestCreateAndCancelOverHTTP(t *testing.T) {

	var ts = newTestServer(t)
	var admin = ts.login("admin")
	var alice = ts.login("alice")

	var folder folderView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/folders", folderRequest{Name: "Invoices"}, &folder))

	var file fileView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/files", fileRequest{FolderID: folder.ID, Name: "march.pdf"}, &file))
	assert.Nil(t, file.Workflow)

	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPost, "/workflows", workflowRequest{
		FileID: file.ID,
		Mode:   "parallel",
	}, nil))
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPost, "/workflows", workflowRequest{
		FileID:    "missing",
		Mode:      "parallel",
		Approvers: []core.ApproverInput{{UserID: ts.users["alice"]}},
	}, nil))

	var wf workflowView
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/workflows", workflowRequest{
		FileID:    file.ID,
		Mode:      "parallel",
		Approvers: []core.ApproverInput{{UserID: ts.users["alice"]}, {UserID: ts.users["bob"]}},
	}, &wf))
	assert.Equal(t, "parallel", wf.Mode)

	var count map[string]int
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications/unread-count", nil, &count))
	assert.Equal(t, 1, count["unread_count"])

	// only the initiator can cancel
	assert.Equal(t, http.StatusForbidden, alice.do(http.MethodDelete, "/workflows/"+wf.ID, nil, nil))

	var cancelled workflowView
	require.Equal(t, http.StatusOK, admin.do(http.MethodDelete, "/workflows/"+wf.ID, nil, &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)
	for _, s := range cancelled.Steps {
		assert.Equal(t, "skipped", s.Status)
	}

	assert.Equal(t, http.StatusConflict, alice.do(http.MethodPost, "/steps/"+wf.Steps[0].ID+"/decision", decisionRequest{Decision: "reject"}, nil))
}

func TestNotificationsOverHTTP(t *testing.T) {

	var ts = newTestServer(t)
	var alice = ts.login("alice")
	var bob = ts.login("bob")

	var settings settingsView
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications/settings", nil, &settings))
	assert.Equal(t, "instant", settings.Mode)

	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodPut, "/notifications/settings", settingsView{Mode: "grouped"}, nil))
	require.Equal(t, http.StatusOK, alice.do(http.MethodPut, "/notifications/settings", settingsView{Mode: "grouped", GroupInterval: "daily"}, &settings))
	assert.Equal(t, "grouped", settings.Mode)
	assert.Equal(t, "daily", settings.GroupInterval)
	assert.Equal(t, core.EventApproval, settings.EventType)

	var ctx = stdcontext.Background()
	for i := 0; i < 3; i++ {
		_, err := ts.db.Notify(ctx, ts.users["alice"], core.NotificationReminder, fmt.Sprintf("Reminder %d", i), "", "", "")
		require.NoError(t, err)
	}

	var all []notificationView
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications?limit=2", nil, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "Reminder 2", all[0].Title)

	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodPatch, "/notifications/"+all[0].ID, nil, nil))

	var read notificationView
	require.Equal(t, http.StatusOK, alice.do(http.MethodPatch, "/notifications/"+all[0].ID, nil, &read))
	assert.True(t, read.IsRead)

	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications?is_read=false", nil, &all))
	assert.Len(t, all, 2)

	var marked map[string]int
	require.Equal(t, http.StatusOK, alice.do(http.MethodPost, "/notifications/mark-all-read", nil, &marked))

	var count map[string]int
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/notifications/unread-count", nil, &count))
	assert.Equal(t, 0, count["unread_count"])
}

func TestMetrics(t *testing.T) {

	var ts = newTestServer(t)

	resp, err := http.Get(ts.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "go_goroutines"))
}
