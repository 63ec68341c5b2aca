package mirror

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) *Mirror {
	t.Helper()
	m := New()
	m.Replace("p-1", "Todo App", []File{
		{Name: "a.ts", Content: "export const a = 1\n"},
		{Name: "b.ts", Content: "export const b = 2\n"},
	}, nil)
	require.NoError(t, m.SetActiveFile("a.ts"))
	return m
}

func TestReplaceKeepsSurvivingSelection(t *testing.T) {
	m := newTestMirror(t)

	m.Replace("p-1", "Todo App v2", []File{
		{Name: "b.ts", Content: "changed"},
		{Name: "a.ts", Content: "changed"},
	}, nil)
	require.Equal(t, "a.ts", m.ActiveFile())

	m.Replace("p-1", "Todo App v3", []File{{Name: "index.html"}}, nil)
	require.Equal(t, "index.html", m.ActiveFile(), "selection falls back to first file")

	m.Replace("p-1", "Todo App v4", nil, nil)
	require.Equal(t, "", m.ActiveFile())
}

func TestInsertFileRejectsDuplicate(t *testing.T) {
	m := newTestMirror(t)
	before := m.Files()

	err := m.InsertFile(File{Name: "a.ts", Content: "dup"})
	require.ErrorIs(t, err, ErrFileExists)
	require.Empty(t, cmp.Diff(before, m.Files()))
}

func TestRemoveFileSelectionFallback(t *testing.T) {
	m := newTestMirror(t)

	require.NoError(t, m.RemoveFile("a.ts"))
	require.Equal(t, "b.ts", m.ActiveFile())

	require.NoError(t, m.RemoveFile("b.ts"))
	require.Equal(t, "", m.ActiveFile())

	require.ErrorIs(t, m.RemoveFile("c.ts"), ErrNoSuchFile)
}

func TestRenameFileSelectionFollows(t *testing.T) {
	m := newTestMirror(t)

	require.NoError(t, m.RenameFile("a.ts", "main.ts"))
	require.Equal(t, "main.ts", m.ActiveFile())

	_, ok := m.File("a.ts")
	require.False(t, ok)
	f, ok := m.File("main.ts")
	require.True(t, ok)
	require.Equal(t, "export const a = 1\n", f.Content)
}

func TestRenameFileCollision(t *testing.T) {
	m := newTestMirror(t)
	before := m.CaptureFileState()

	err := m.RenameFile("a.ts", "b.ts")
	require.ErrorIs(t, err, ErrFileExists)
	require.Empty(t, cmp.Diff(before, m.CaptureFileState()))
}

func TestCaptureAndRestoreFileState(t *testing.T) {
	m := newTestMirror(t)
	snap := m.CaptureFileState()

	require.NoError(t, m.RemoveFile("a.ts"))
	require.NoError(t, m.SetFileContent("b.ts", "mutated"))
	require.NoError(t, m.InsertFile(File{Name: "c.ts"}))

	m.RestoreFileState(snap)

	require.Empty(t, cmp.Diff(snap.Files, m.Files()))
	require.Equal(t, "a.ts", m.ActiveFile())
}

func TestCapturedStateIsIsolated(t *testing.T) {
	m := newTestMirror(t)
	snap := m.CaptureFileState()

	require.NoError(t, m.SetFileContent("a.ts", "mutated"))
	require.Equal(t, "export const a = 1\n", snap.Files[0].Content,
		"snapshot must not alias live mirror state")
}

func TestSetActiveFileValidation(t *testing.T) {
	m := newTestMirror(t)

	require.ErrorIs(t, m.SetActiveFile("nope.ts"), ErrNoSuchFile)
	require.Equal(t, "a.ts", m.ActiveFile())

	require.NoError(t, m.SetActiveFile(""))
	require.Equal(t, "", m.ActiveFile())
}

func TestAppendMessageSequentialIDs(t *testing.T) {
	m := New()
	m.AppendMessage("build me a todo app", true)
	m.AppendMessage("Routed to domain: web", false)

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, 0, msgs[0].ID)
	require.True(t, msgs[0].FromUser)
	require.Equal(t, 1, msgs[1].ID)
	require.False(t, msgs[1].FromUser)
}

func TestAppendMessageAfterReplaceKeepsIDsUnique(t *testing.T) {
	m := New()
	// Server snapshots carry their own message ids, which need not be
	// dense or zero-based.
	m.Replace("p-1", "Todo App", nil, []Message{
		{ID: 4, Content: "build me a todo app", FromUser: true},
		{ID: 7, Content: "Routed to domain: web", FromUser: false},
	})

	m.AppendMessage("add a dark mode", true)

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, 8, msgs[2].ID)

	seen := make(map[int]bool)
	for _, msg := range msgs {
		require.False(t, seen[msg.ID], "duplicate message id %d", msg.ID)
		seen[msg.ID] = true
	}
}

func TestReset(t *testing.T) {
	m := newTestMirror(t)
	m.SetReady(true)
	m.SetPending(true)

	m.Reset()

	require.Equal(t, "", m.ID())
	require.Empty(t, m.Files())
	require.Equal(t, "", m.ActiveFile())
	require.False(t, m.Ready())
	require.False(t, m.Pending())
}
