package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
)

func resetEvaluateFlags(t *testing.T) {
	t.Helper()
	saved := evaluateFlags
	t.Cleanup(func() { evaluateFlags = saved })
	evaluateFlags.tenant = ""
	evaluateFlags.bot = ""
	evaluateFlags.packs = nil
	evaluateFlags.nodes = ""
	evaluateFlags.phase = string(engine.PhaseCompile)
	evaluateFlags.now = ""
}

func TestReadBotFile_Document(t *testing.T) {
	doc, err := readBotFile("testdata/bot.yaml")
	require.NoError(t, err)

	assert.Equal(t, "acme", doc.TenantID)
	assert.Equal(t, "claims-intake", doc.BotID)
	assert.Equal(t, []string{"hipaa@1.0.0"}, doc.Packs)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "upload", doc.Nodes[1].NodeID)
	assert.Equal(t, lattice.EgressExternal, doc.Nodes[1].Egress)
	assert.Equal(t, []lattice.Classification{lattice.PHI}, doc.Nodes[1].DataClassifications)
}

func TestReadBotFile_List(t *testing.T) {
	doc, err := readBotFile("testdata/nodes.yaml")
	require.NoError(t, err)

	assert.Empty(t, doc.TenantID)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "classify", doc.Nodes[0].NodeID)
	assert.Equal(t, "llm.classify", doc.Nodes[0].NodeType)
}

func TestReadBotFile_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := map[string]string{
		"missing":  filepath.Join(dir, "missing.yaml"),
		"empty":    write("empty.yaml", ""),
		"no nodes": write("nonodes.yaml", "tenantId: acme\n"),
		"bad yaml": write("bad.yaml", "nodes: [{{"),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readBotFile(path)
			assert.Error(t, err)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	resetEvaluateFlags(t)
	evaluateFlags.nodes = "testdata/bot.yaml"

	req, err := buildRequest()
	require.NoError(t, err)
	assert.Equal(t, "acme", req.TenantID)
	assert.Equal(t, "claims-intake", req.BotID)
	assert.Equal(t, []pack.Ref{{ID: "hipaa", Version: "1.0.0"}}, req.Packs)
	assert.Equal(t, engine.PhaseCompile, req.Phase)
	assert.True(t, req.Now.IsZero())
	assert.Len(t, req.Nodes, 2)
}

func TestBuildRequest_FlagOverrides(t *testing.T) {
	resetEvaluateFlags(t)
	evaluateFlags.nodes = "testdata/bot.yaml"
	evaluateFlags.tenant = "globex"
	evaluateFlags.bot = "payments"
	evaluateFlags.packs = []string{"soc2@1.0.0", "pci-dss@4.0.0"}
	evaluateFlags.phase = string(engine.PhaseRuntime)
	evaluateFlags.now = "2026-03-01T12:00:00Z"

	req, err := buildRequest()
	require.NoError(t, err)
	assert.Equal(t, "globex", req.TenantID)
	assert.Equal(t, "payments", req.BotID)
	assert.Equal(t, []pack.Ref{{ID: "soc2", Version: "1.0.0"}, {ID: "pci-dss", Version: "4.0.0"}}, req.Packs)
	assert.Equal(t, engine.PhaseRuntime, req.Phase)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), req.Now)
}

func TestBuildRequest_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"no tenant or packs", func() { evaluateFlags.nodes = "testdata/nodes.yaml" }},
		{"bad pack ref", func() {
			evaluateFlags.nodes = "testdata/nodes.yaml"
			evaluateFlags.packs = []string{"hipaa"}
		}},
		{"bad now", func() {
			evaluateFlags.nodes = "testdata/bot.yaml"
			evaluateFlags.now = "yesterday"
		}},
		{"missing nodes file", func() { evaluateFlags.nodes = "testdata/missing.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEvaluateFlags(t)
			tt.setup()

			_, err := buildRequest()
			require.Error(t, err)
			var cfgErr *cli.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "want ConfigError, got %T", err)
			assert.Equal(t, cli.ExitError, cli.ExitCode(err))
		})
	}
}

func TestReadPresentControls(t *testing.T) {
	present, err := readPresentControls("testdata/present.yaml")
	require.NoError(t, err)

	assert.Equal(t, []pack.ControlType{"DLP_SCAN", "REDACT"}, present["upload"])
	assert.Empty(t, present["classify"])

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upload: [\"not a control\"]\n"), 0o644))
	_, err = readPresentControls(path)
	assert.Error(t, err)
}

func TestReadReport(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"result":{"passed":true,"blocks":[],"warnings":[],"requiredApprovals":[],"injectedControls":{}}}`), 0o644))
	report, err := readReport(path)
	require.NoError(t, err)
	require.NotNil(t, report.Result)
	assert.True(t, report.Result.Passed)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = readReport(empty)
	assert.Error(t, err)
}
