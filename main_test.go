package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config and the database at temp locations.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "nodes.db")
	t.Setenv("CHARTREUSE_DB_PATH", dbPath)
	t.Setenv("CHARTREUSE_LOG_LEVEL", "error")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func readNodes(t *testing.T, dbPath string) []domain.Node {
	t.Helper()
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	nodes, err := database.ReadNodes(context.Background())
	require.NoError(t, err)
	return nodes
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["node"])
}

func TestNodeAddAndList(t *testing.T) {
	dbPath := isolate(t)

	out, err := run(t, "node", "add",
		"--host", "http://peer.example/chartreuse/api",
		"--username", "alice", "--password", "secret",
		"--direction", "outgoing")
	require.NoError(t, err)
	assert.Contains(t, out, "added OUTGOING node http://peer.example/chartreuse/api/")
	assert.NotContains(t, out, "generated password")

	nodes := readNodes(t, dbPath)
	require.Len(t, nodes, 1)
	assert.Equal(t, "http://peer.example/chartreuse/api/", nodes[0].Host)
	assert.Equal(t, "secret", nodes[0].Password)
	assert.Equal(t, domain.OUTGOING, nodes[0].Direction)
	assert.Equal(t, domain.ENABLED, nodes[0].Status)

	out, err = run(t, "node", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "http://peer.example/chartreuse/api/")
	assert.Contains(t, out, "OUTGOING")
	assert.Contains(t, out, "alice")
}

func TestNodeAddGeneratesPassword(t *testing.T) {
	dbPath := isolate(t)

	out, err := run(t, "node", "add",
		"--host", "http://peer.example/chartreuse/api/",
		"--username", "peer", "--direction", "INCOMING", "--disabled")
	require.NoError(t, err)
	assert.Contains(t, out, "generated password: ")

	nodes := readNodes(t, dbPath)
	require.Len(t, nodes, 1)
	assert.Len(t, nodes[0].Password, generatedPasswordLength)
	assert.Contains(t, out, nodes[0].Password)
	assert.Equal(t, domain.DISABLED, nodes[0].Status)
}

func TestNodeAddRejectsBadInput(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad host", []string{"--host", "not a url", "--username", "u", "--direction", "OUTGOING"}},
		{"bad direction", []string{"--host", "http://peer.example/", "--username", "u", "--direction", "SIDEWAYS"}},
		{"missing username", []string{"--host", "http://peer.example/", "--direction", "OUTGOING"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"node", "add"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestNodeAddDuplicate(t *testing.T) {
	isolate(t)
	args := []string{"node", "add", "--host", "http://peer.example/", "--username", "u", "--password", "p", "--direction", "OUTGOING"}

	_, err := run(t, args...)
	require.NoError(t, err)
	_, err = run(t, args...)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrDuplicate)
}

func TestNodeEnableDisableRemove(t *testing.T) {
	dbPath := isolate(t)
	_, err := run(t, "node", "add", "--host", "http://peer.example/", "--username", "u", "--password", "p", "--direction", "OUTGOING")
	require.NoError(t, err)

	out, err := run(t, "node", "disable", "--host", "http://peer.example", "--direction", "OUTGOING")
	require.NoError(t, err)
	assert.Contains(t, out, "is now DISABLED")
	assert.Equal(t, domain.DISABLED, readNodes(t, dbPath)[0].Status)

	_, err = run(t, "node", "enable", "--host", "http://peer.example/", "--direction", "outgoing")
	require.NoError(t, err)
	assert.Equal(t, domain.ENABLED, readNodes(t, dbPath)[0].Status)

	// the same host registered INCOMING is a different link
	_, err = run(t, "node", "remove", "--host", "http://peer.example/", "--direction", "INCOMING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no INCOMING node http://peer.example/ registered")

	out, err = run(t, "node", "remove", "--host", "http://peer.example/", "--direction", "OUTGOING")
	require.NoError(t, err)
	assert.Contains(t, out, "removed OUTGOING node http://peer.example/")
	assert.Empty(t, readNodes(t, dbPath))
}

func TestNodeListEmpty(t *testing.T) {
	isolate(t)
	out, err := run(t, "node", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no nodes registered")
}
