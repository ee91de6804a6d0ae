package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtestflow/recorder/internal/models"
)

const recorded = `[
  {"index": 1, "url": "/login", "action": "navigate", "identifiers": {}, "elementType": "", "screenshot": null},
  {"index": 2, "url": "/login", "action": "click", "identifiers": {"id": "#submit", "nth": "body>form:nth-child(1)>button:nth-child(3)"}, "elementType": "button", "screenshot": null}
]`

func runExport(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"export"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExportCommand(t *testing.T) {
	out, err := runExport(t, writeFile(t, "steps.json", recorded))
	require.NoError(t, err)

	var doc models.ExportDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Steps, 2)
	assert.Equal(t, 0, doc.Steps[0].Index)
	assert.Equal(t, models.ActionNavigate, doc.Steps[0].Action)
	assert.Equal(t, "", doc.Steps[0].Element)
	assert.Equal(t, 1, doc.Steps[1].Index)
	assert.Equal(t, "#submit", doc.Steps[1].Element)
	assert.Equal(t, "button", doc.Steps[1].Type)
}

func TestExportCommand_ChooseAndOutput(t *testing.T) {
	in := writeFile(t, "steps.json", `{"steps": `+recorded+`}`)
	target := filepath.Join(t.TempDir(), "export.json")

	_, err := runExport(t, in, "--choose", "2=nth", "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var doc models.ExportDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Steps, 2)
	assert.Equal(t, "body>form:nth-child(1)>button:nth-child(3)", doc.Steps[1].Element)
}

func TestExportCommand_Errors(t *testing.T) {
	_, err := runExport(t, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = runExport(t, writeFile(t, "bad.json", "{not json"))
	assert.Error(t, err)

	_, err = runExport(t, writeFile(t, "steps.json", recorded), "--choose", "two=nth")
	assert.Error(t, err)
}

func TestExportCommand_Empty(t *testing.T) {
	out, err := runExport(t, writeFile(t, "steps.json", "[]"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"steps": []}`, out)
}

func TestParseChoices(t *testing.T) {
	picked, err := parseChoices([]string{"1=id", "4=aria-label"})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "id", 4: "aria-label"}, picked)

	_, err = parseChoices([]string{"3"})
	assert.Error(t, err)
	_, err = parseChoices([]string{"3="})
	assert.Error(t, err)
}
