package cli

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/apiflow/internal/testutil"
	"github.com/dshills/apiflow/pkg/env"
	"github.com/dshills/apiflow/pkg/storage"
)

func loadFixtureString(t *testing.T, content string) *Fixture {
	t.Helper()
	f, err := LoadFixture(writeFixture(t, content))
	require.NoError(t, err)
	return f
}

func TestRunFixtureEndToEnd(t *testing.T) {
	server, cleanup := testutil.StartEchoServer("X-Run")
	defer cleanup()

	fixture := loadFixtureString(t, fmt.Sprintf(`
name: echo run
request:
  method: POST
  url: %s/items
environment:
  id: dev
  variables:
    - key: runId
      value: r-1
preScript: |
  request.setHeader("X-Run", environment.get("runId"));
postScript: |
  var doc = response.json();
  test("header reached the wire", function() {
    if (doc.headers["X-Run"] !== "r-1") { throw new Error("header lost"); }
  });
assertions:
  - name: status ok
    type: status
    operator: equals
    expected: 200
  - name: method echoed
    type: jsonPath
    target: method
    operator: equals
    expected: POST
`, server.URL))

	var out bytes.Buffer
	err := runFixture(context.Background(), &out, fixture, runOptions{})
	require.NoError(t, err, "output:\n%s", out.String())

	assert.Contains(t, out.String(), "pre-script: ok")
	assert.Contains(t, out.String(), "post-script: ok")
	assert.Contains(t, out.String(), "PASS header reached the wire")
	assert.Contains(t, out.String(), "PASS status ok")
	assert.Contains(t, out.String(), "PASS method echoed")
}

func TestRunFixtureFailuresSetExitError(t *testing.T) {
	server, cleanup := testutil.StartJSONServer(map[string]testutil.JSONRoute{
		"/users": {Status: 404, Body: map[string]interface{}{"error": "gone"}},
	})
	defer cleanup()

	fixture := loadFixtureString(t, fmt.Sprintf(`
request:
  url: %s/users
postScript: |
  test("wanted 200", function() {
    if (response.status !== 200) { throw new Error("got " + response.status); }
  });
assertions:
  - name: status ok
    type: status
    operator: equals
    expected: 200
`, server.URL))

	var out bytes.Buffer
	err := runFixture(context.Background(), &out, fixture, runOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 failure(s)")
	assert.Contains(t, out.String(), "FAIL wanted 200")
	assert.Contains(t, out.String(), "FAIL status ok: Expected status to equal 200 but got 404")
}

func TestRunFixtureNoSendSkipsTransport(t *testing.T) {
	fixture := loadFixtureString(t, `
request:
  url: http://unreachable.invalid/
preScript: |
  console.log("pre ran");
postScript: |
  console.log("post must not run");
`)

	var out bytes.Buffer
	err := runFixture(context.Background(), &out, fixture, runOptions{noSend: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pre ran")
	assert.NotContains(t, out.String(), "post must not run")
}

func TestRunFixtureTransportFailure(t *testing.T) {
	fixture := loadFixtureString(t, `
request:
  url: http://unreachable.invalid/
`)

	var out bytes.Buffer
	err := runFixture(context.Background(), &out, fixture, runOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport")
}

func TestRunFixtureMergesDiffIntoStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "apiflow.db")
	store, err := storage.NewEnvironmentStoreWithPath(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), &env.Environment{
		ID:   "dev",
		Name: "dev",
		Variables: []env.Variable{
			{Key: "host", Value: "localhost", Enabled: true},
		},
	}))
	require.NoError(t, store.Close())

	previous := GlobalConfig.DBPath
	GlobalConfig.DBPath = dbPath
	defer func() { GlobalConfig.DBPath = previous }()

	server, cleanup := testutil.StartJSONServer(map[string]testutil.JSONRoute{
		"/token": {Body: map[string]interface{}{"token": "t-123"}},
	})
	defer cleanup()

	fixture := loadFixtureString(t, fmt.Sprintf(`
request:
  url: %s/token
environmentId: dev
postScript: |
  environment.set("token", response.json().token);
  environment.unset("host");
`, server.URL))

	var out bytes.Buffer
	require.NoError(t, runFixture(context.Background(), &out, fixture, runOptions{}))

	store, err = storage.NewEnvironmentStoreWithPath(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loaded, err := store.Load(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, env.Snapshot{"token": "t-123"}, env.NewSnapshot(loaded))
}

func TestRunFixtureFailedScriptMergesNothing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "apiflow.db")
	store, err := storage.NewEnvironmentStoreWithPath(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), &env.Environment{
		ID:        "dev",
		Name:      "dev",
		Variables: []env.Variable{{Key: "host", Value: "localhost", Enabled: true}},
	}))
	require.NoError(t, store.Close())

	previous := GlobalConfig.DBPath
	GlobalConfig.DBPath = dbPath
	defer func() { GlobalConfig.DBPath = previous }()

	server, cleanup := testutil.StartJSONServer(map[string]testutil.JSONRoute{
		"/ping": {Body: map[string]interface{}{"ok": true}},
	})
	defer cleanup()

	fixture := loadFixtureString(t, fmt.Sprintf(`
request:
  url: %s/ping
environmentId: dev
postScript: |
  environment.set("host", "evil.example.com");
  throw new Error("abort");
`, server.URL))

	var out bytes.Buffer
	err = runFixture(context.Background(), &out, fixture, runOptions{})
	require.Error(t, err)

	store, err = storage.NewEnvironmentStoreWithPath(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loaded, err := store.Load(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, env.Snapshot{"host": "localhost"}, env.NewSnapshot(loaded))
}

func TestRunFixtureMissingStoredEnvironment(t *testing.T) {
	previous := GlobalConfig.DBPath
	GlobalConfig.DBPath = filepath.Join(t.TempDir(), "apiflow.db")
	defer func() { GlobalConfig.DBPath = previous }()

	fixture := loadFixtureString(t, `
request:
  url: http://localhost/
environmentId: ghost
`)

	var out bytes.Buffer
	err := runFixture(context.Background(), &out, fixture, runOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
