package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
)

const scriptedChat = `
task: Explain gravity
max_rounds: 6
termination:
  approver: Teacher
participants:
  - name: Student
    replies: ["Is it magnetism?", "Is it mass attracting mass?"]
  - name: Teacher
    replies: ["Not quite.", "Approved!"]
log:
  level: error
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestRun_PrintsTranscript(t *testing.T) {
	path := writeConfig(t, scriptedChat)

	out, errOut, err := execute(t, "run", "-c", path)
	require.NoError(t, err)

	assert.Contains(t, out, "**user**\nExplain gravity\n\n")
	assert.Contains(t, out, "**Student**\nIs it magnetism?\n\n")
	assert.Contains(t, out, "**Teacher**\nApproved!\n\n")
	assert.Contains(t, errOut, "terminated after 4 rounds: approved by Teacher")
}

func TestRun_JSONAndOverrides(t *testing.T) {
	path := writeConfig(t, scriptedChat)
	metricsPath := filepath.Join(t.TempDir(), "roundtable.prom")

	out, _, err := execute(t, "run", "-c", path, "--json", "--task", "Why is the sky blue?", "--max-rounds", "2", "--metrics-file", metricsPath)
	require.NoError(t, err)

	var res struct {
		State      string `json:"state"`
		Rounds     int    `json:"rounds"`
		Transcript []struct {
			Author  string `json:"author"`
			Content string `json:"content"`
		} `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "completed", res.State)
	assert.Equal(t, 2, res.Rounds)
	require.Len(t, res.Transcript, 3)
	assert.Equal(t, "Why is the sky blue?", res.Transcript[0].Content)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `roundtable_runs_total{state="completed"} 1`)
}

func TestRun_Errors(t *testing.T) {
	_, _, err := execute(t, "run", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	noTask := writeConfig(t, "termination: {type: never}\nparticipants: [{name: A, replies: [x]}]\n")
	_, _, err = execute(t, "run", "-c", noTask)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task given")

	exhausted := writeConfig(t, "task: go\nmax_rounds: 3\ntermination: {type: never}\nparticipants: [{name: A, replies: [x]}]\n")
	_, errOut, err := execute(t, "run", "-c", exhausted)
	require.Error(t, err)
	assert.Contains(t, errOut, "failed after 1 rounds")
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, scriptedChat)
	out, _, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 participants, max 6 rounds, turn policy round_robin, termination approval_keyword")

	bad := writeConfig(t, "participants: []\n")
	_, _, err = execute(t, "validate", "-c", bad)
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	out, _, err := execute(t, "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "properties")
}

func TestStreamPrinter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, newNameStyler([]string{"A"}))

	p.OnPartial("A", "Hel")
	p.OnPartial("A", "lo")
	require.NoError(t, p.OnMessage(t.Context(), core.NewAssistantMessage("A", "Hello")))
	require.NoError(t, p.OnMessage(t.Context(), core.NewAssistantMessage("B", "Scripted")))

	assert.Equal(t, "**A**\nHello\n\n**B**\nScripted\n\n", buf.String())
}
