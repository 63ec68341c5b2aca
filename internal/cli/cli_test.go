package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webgenai/genctl/internal/api"
	"github.com/webgenai/genctl/internal/config"
	"github.com/webgenai/genctl/internal/protocol"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg := config.GenerateDefault()
	cfg.ServerURL = serverURL
	cfg.EventLogDir = filepath.Join(t.TempDir(), "events")
	return cfg
}

func serveSSE(t *testing.T, w http.ResponseWriter, frames []string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	require.True(t, ok, "response writer must support flushing")

	for _, frame := range frames {
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
	}
}

func TestWatchRunCompletes(t *testing.T) {
	frames := []string{
		`{"t":"status","step":"router","state":"running"}`,
		`{"t":"router.result","domain":"webapp","confidence":0.93,"rationale":"form-based"}`,
		`{"t":"status","step":"router","state":"done"}`,
		`{"t":"title.generated","title":"Todo App"}`,
		`{"t":"status","step":"implement","state":"running"}`,
		`{"t":"log","stream":"implement","chunk":"writing App.tsx"}`,
		`{"t":"done","ok":true,"project_id":"p-1"}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/runs/run-1/events":
			serveSSE(t, w, frames)
		case "/database/get_project/p-1":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"p-1","title":"Todo App","files":[{"name":"App.tsx","content":"export {}"}],"messages":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(server.URL, "tok", logger)
	cfg := testConfig(t, server.URL)

	var out bytes.Buffer
	err := watchRun(context.Background(), client, cfg, "run-1", protocol.RunKindGenerate, &out, logger)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Title: Todo App")
	assert.Contains(t, out.String(), "[implement] running")
	assert.Contains(t, out.String(), "Project p-1: Todo App")
	assert.Contains(t, out.String(), "App.tsx")

	// Every event must have been captured
	entries, err := os.ReadDir(cfg.EventLogDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(cfg.EventLogDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, len(frames), bytes.Count(data, []byte("\n")))
}

func TestWatchRunMinimalConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveSSE(t, w, []string{`{"t":"done","ok":true,"project_id":"p-9"}`})
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(server.URL, "tok", logger)

	// A config file that only sets the required fields leaves
	// event_log_dir empty; the capture log must still land somewhere.
	cfg := &config.Config{Version: "1.0", ServerURL: server.URL}
	require.NoError(t, cfg.Validate())

	chdir(t, t.TempDir())

	var out bytes.Buffer
	err := watchRun(context.Background(), client, cfg, "run-9", protocol.RunKindGenerate, &out, logger)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(".genctl", "events"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWatchRunFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveSSE(t, w, []string{
			`{"t":"status","step":"test","state":"failed"}`,
			`{"t":"done","ok":false,"error":"tests kept failing"}`,
		})
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(server.URL, "tok", logger)
	cfg := testConfig(t, server.URL)

	var out bytes.Buffer
	err := watchRun(context.Background(), client, cfg, "run-2", protocol.RunKindGenerate, &out, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tests kept failing")
}

func TestWatchRunStreamEndsEarly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveSSE(t, w, []string{`{"t":"status","step":"planner","state":"running"}`})
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(server.URL, "tok", logger)
	cfg := testConfig(t, server.URL)

	var out bytes.Buffer
	err := watchRun(context.Background(), client, cfg, "run-3", protocol.RunKindGenerate, &out, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended before completion")
}

func TestReplayEventsAfterWatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveSSE(t, w, []string{
			`{"t":"title.generated","title":"Todo App"}`,
			`{"t":"done","ok":true,"project_id":"p-1"}`,
		})
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(server.URL, "tok", logger)
	cfg := testConfig(t, server.URL)

	var watchOut bytes.Buffer
	err := watchRun(context.Background(), client, cfg, "run-5", protocol.RunKindGenerate, &watchOut, logger)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, replayEvents(cfg.EventLogDir, "run-5", false, &out, logger))

	assert.Contains(t, out.String(), "title.generated")
	assert.Contains(t, out.String(), "Todo App")
	assert.Contains(t, out.String(), "2 event(s)")

	// NDJSON output must parse line by line
	out.Reset()
	require.NoError(t, replayEvents(cfg.EventLogDir, "run-5", true, &out, logger))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		assert.NotEmpty(t, rec["event_type"])
	}
}

func TestReplayEventsUnknownRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	err := replayEvents(t.TempDir(), "run-missing", false, &out, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capture files")
}

func TestPullCommandWritesManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database/get_project/p-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"p-1","title":"Todo App","files":[{"name":"App.tsx","content":"export {}"}],"messages":[]}`)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := config.GenerateDefault()
	cfg.ServerURL = server.URL
	cfgPath := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, cfg.SaveToFile(cfgPath))

	outDir := filepath.Join(dir, "export")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"pull", "p-1", "--config", cfgPath, "--out", outDir})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	content, err := os.ReadFile(filepath.Join(outDir, "App.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(content))

	data, err := os.ReadFile(filepath.Join(outDir, manifestFileName))
	require.NoError(t, err)

	var manifest exportManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, "p-1", manifest.ProjectID)
	assert.Equal(t, "Todo App", manifest.Title)
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, "App.tsx", manifest.Files[0].Path)
	assert.Equal(t, int64(len("export {}")), manifest.Files[0].Size)
}

func TestArtifactCommandVerifies(t *testing.T) {
	payload := []byte("PK\x03\x04 fake zip payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs/run-1/artifact.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := config.GenerateDefault()
	cfg.ServerURL = server.URL
	cfgPath := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, cfg.SaveToFile(cfgPath))

	outPath := filepath.Join(dir, "run-1.zip")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"artifact", "run-1", "--config", cfgPath, "--out", outPath, "--verify"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Verified "+outPath)

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	var out bytes.Buffer
	initCmd.SetOut(&out)
	require.NoError(t, runInit(initCmd, nil))

	cfg, err := config.LoadFromFile(filepath.Join(dir, config.DefaultFileName))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	// Second init must refuse to overwrite
	err = runInit(initCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestFindConfigInTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, config.GenerateDefault().SaveToFile(filepath.Join(root, config.DefaultFileName)))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	chdir(t, nested)

	found, err := findConfigInTree()
	require.NoError(t, err)

	// Paths may differ by symlink resolution on some systems
	assert.Equal(t, config.DefaultFileName, filepath.Base(found))
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{
		"init", "run", "modify", "watch", "events", "kill",
		"projects", "pull", "title", "file", "telemetry", "artifact",
	} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
