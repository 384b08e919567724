package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/scribe-cli/client"
	"github.com/otherjamesbrown/scribe-cli/config"
	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/events"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
)

type fakeBackend struct {
	result  *meeting.Result
	err     error
	pingErr error
	calls   int
	got     string
}

func (f *fakeBackend) Upload(ctx context.Context, filename string, r io.Reader) (*meeting.Result, error) {
	f.calls++
	f.got = filename
	_, _ = io.Copy(io.Discard, r)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeBackend) Ping(ctx context.Context) (*client.PingResult, error) {
	if f.pingErr != nil {
		return nil, f.pingErr
	}
	return &client.PingResult{StatusCode: 200, Message: "Meeting backend ready", Latency: 12 * time.Millisecond}, nil
}

type fakeRedis struct {
	mu       sync.Mutex
	channels []string
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Close() error { return nil }

func sampleResult() *meeting.Result {
	return &meeting.Result{
		Segments: []meeting.Segment{
			{Speaker: "A", Text: "hello", Start: 0, End: 1},
			{Speaker: "B", Text: "world", Start: 65, End: 66},
		},
		Insights: meeting.Insights{
			Summary:        "Agreed to ship.",
			CalendarEvents: []meeting.CalendarEvent{{Title: "Kickoff Call", Date: "2026-03-01", Time: "10:00"}},
		},
	}
}

func testDeps(t *testing.T, backend *fakeBackend) *CommandDeps {
	t.Helper()
	return &CommandDeps{
		Config: config.DefaultConfig(),
		Logger: logging.NewNopLogger(),
		APIKey: func() (string, error) { return "", nil },
		NewBackend: func(cfg *config.CLIConfig, apiKey string, log logging.Logger) (Backend, error) {
			return backend, nil
		},
		Now: func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) },
	}
}

func withEvents(deps *CommandDeps) *fakeRedis {
	fake := &fakeRedis{}
	deps.Config.Redis = &config.RedisConfig{Addr: "localhost:6379"}
	deps.NewPublisher = func(cfg *config.RedisConfig, log logging.Logger) (*events.Publisher, error) {
		return events.NewPublisher(fake, cfg.GetChannelPrefix(), log), nil
	}
	return fake
}

func execute(t *testing.T, c *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c.SetArgs(args)
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SilenceUsage = true
	err := c.Execute()
	return out.String(), errOut.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUpload_PrintsRenamedTranscript(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	deps := testDeps(t, backend)
	audio := writeTemp(t, "standup.mp3", "audio")

	out, _, err := execute(t, NewUploadCommand(deps), audio, "--rename", "A=Alice", "-r", "B=Bob")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, "standup.mp3", backend.got)
	assert.Contains(t, out, "standup.mp3 (2 segments, 2 speakers)")
	assert.Contains(t, out, "[0:00] Alice: hello\n\n[1:05] Bob: world")
	assert.NotContains(t, out, "Agreed to ship.")
}

func TestUpload_Insights(t *testing.T) {
	deps := testDeps(t, &fakeBackend{result: sampleResult()})
	audio := writeTemp(t, "standup.wav", "audio")

	out, _, err := execute(t, NewUploadCommand(deps), audio, "--insights")
	require.NoError(t, err)
	assert.Contains(t, out, "Executive Summary\n  Agreed to ship.")
	assert.Contains(t, out, "[0] Kickoff Call  2026-03-01 10:00")
}

func TestUpload_JSONOutput(t *testing.T) {
	deps := testDeps(t, &fakeBackend{result: sampleResult()})
	audio := writeTemp(t, "standup.mp3", "audio")

	out, _, err := execute(t, NewUploadCommand(deps), audio, "-r", "A=Alice", "-o", "json")
	require.NoError(t, err)

	var view TranscriptView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "standup.mp3", view.Source)
	assert.Equal(t, map[string]string{"A": "Alice", "B": "B"}, view.Speakers)
	require.Len(t, view.Segments, 2)
	assert.Equal(t, SegmentView{Offset: "1:05", Label: "B", Speaker: "B", Text: "world"}, view.Segments[1])
}

func TestUpload_Failure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	deps := testDeps(t, backend)
	audio := writeTemp(t, "standup.mp3", "audio")

	_, errOut, err := execute(t, NewUploadCommand(deps), audio)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, errOut, scerrors.UploadFailedNotice)
}

func TestUpload_RejectedBeforeSending(t *testing.T) {
	tests := []struct {
		name string
		file string
		args []string
	}{
		{"unsupported type", "notes.pdf", nil},
		{"malformed rename", "standup.mp3", []string{"--rename", "Alice"}},
		{"bad output format", "standup.mp3", []string{"-o", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{result: sampleResult()}
			deps := testDeps(t, backend)
			audio := writeTemp(t, tt.file, "audio")

			_, _, err := execute(t, NewUploadCommand(deps), append([]string{audio}, tt.args...)...)
			require.Error(t, err)
			assert.Zero(t, backend.calls)
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	deps := testDeps(t, backend)
	deps.Config.MaxUploadMB = 1
	audio := writeTemp(t, "long.mp3", strings.Repeat("a", (1<<20)+1))

	_, _, err := execute(t, NewUploadCommand(deps), audio)
	require.ErrorIs(t, err, client.ErrFileTooLarge)
	assert.Zero(t, backend.calls)
}

func TestUpload_UnknownRenameLabel(t *testing.T) {
	deps := testDeps(t, &fakeBackend{result: sampleResult()})
	audio := writeTemp(t, "standup.mp3", "audio")

	_, _, err := execute(t, NewUploadCommand(deps), audio, "-r", "Z=Zed")
	require.Error(t, err)
	assert.True(t, scerrors.IsNotFound(err))
}

func TestUpload_SaveExportAndEvents(t *testing.T) {
	deps := testDeps(t, &fakeBackend{result: sampleResult()})
	fake := withEvents(deps)
	audio := writeTemp(t, "standup.mp3", "audio")
	dir := t.TempDir()
	saved := filepath.Join(dir, "standup.json")
	exportDir := filepath.Join(dir, "out")

	_, errOut, err := execute(t, NewUploadCommand(deps), audio, "-r", "A=Alice", "--save", saved, "--export-dir", exportDir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Saved "+saved)

	body, err := os.ReadFile(filepath.Join(exportDir, "transcript-2026-10-17.txt"))
	require.NoError(t, err)
	assert.Equal(t, "[0:00] Alice: hello\n\n[1:05] B: world", string(body))

	ics, err := os.ReadFile(filepath.Join(exportDir, "Kickoff_Call.ics"))
	require.NoError(t, err)
	assert.Contains(t, string(ics), "SUMMARY:Kickoff Call\r\n")

	assert.Equal(t, []string{
		"events.scribe.transcript.completed",
		"events.scribe.export.created",
		"events.scribe.export.created",
	}, fake.channels)

	// The saved file keeps the backend's labels and reopens with the renames applied.
	out, _, err := execute(t, NewOpenCommand(testDeps(t, nil)), saved, "-o", "json")
	require.NoError(t, err)

	var view TranscriptView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Segments, 2)
	assert.Equal(t, "A", view.Segments[0].Label)
	assert.Equal(t, "Alice", view.Segments[0].Speaker)
	assert.Equal(t, "B", view.Segments[1].Label)
	assert.Equal(t, "B", view.Segments[1].Speaker)
	assert.Equal(t, map[string]string{"A": "Alice", "B": "B"}, view.Speakers)
}

func TestUpload_SaveKeepsSpeakersSharingAName(t *testing.T) {
	deps := testDeps(t, &fakeBackend{result: sampleResult()})
	audio := writeTemp(t, "standup.mp3", "audio")
	saved := filepath.Join(t.TempDir(), "standup.json")

	_, _, err := execute(t, NewUploadCommand(deps), audio, "-r", "A=Sam", "-r", "B=Sam", "--save", saved)
	require.NoError(t, err)

	raw, err := os.ReadFile(saved)
	require.NoError(t, err)
	result, err := meeting.DecodeJSON(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "A", result.Segments[0].Speaker)
	assert.Equal(t, "B", result.Segments[1].Speaker)
	assert.Equal(t, 2, meeting.NewSpeakerMap(result.Segments).Len())

	out, _, err := execute(t, NewOpenCommand(testDeps(t, nil)), saved, "-o", "json")
	require.NoError(t, err)

	var view TranscriptView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, map[string]string{"A": "Sam", "B": "Sam"}, view.Speakers)
	assert.Equal(t, "A", view.Segments[0].Label)
	assert.Equal(t, "B", view.Segments[1].Label)
	assert.Equal(t, "Sam", view.Segments[1].Speaker)
}

func TestOpen_ExportedText(t *testing.T) {
	path := writeTemp(t, "transcript.txt", "[0:00] Alice: hello\n\n[1:05] Bob: world")

	out, _, err := execute(t, NewOpenCommand(testDeps(t, nil)), path, "-r", "Bob=Robert")
	require.NoError(t, err)
	assert.Contains(t, out, "[0:00] Alice: hello\n\n[1:05] Robert: world")
}

func TestOpen_YAML(t *testing.T) {
	data, err := json.Marshal(sampleResult())
	require.NoError(t, err)
	path := writeTemp(t, "standup.json", string(data))

	out, _, err := execute(t, NewOpenCommand(testDeps(t, nil)), path, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "source: standup.json")
	assert.Contains(t, out, "label: B")
	assert.Contains(t, out, "1:05")
}

func TestOpen_UnsupportedFile(t *testing.T) {
	path := writeTemp(t, "notes.docx", "x")
	_, _, err := execute(t, NewOpenCommand(testDeps(t, nil)), path)
	require.Error(t, err)
	assert.True(t, scerrors.IsValidation(err))
}

func TestExportCommands(t *testing.T) {
	data, err := json.Marshal(sampleResult())
	require.NoError(t, err)
	path := writeTemp(t, "standup.json", string(data))

	t.Run("transcript", func(t *testing.T) {
		deps := testDeps(t, nil)
		fake := withEvents(deps)
		dir := t.TempDir()

		out, _, err := execute(t, NewExportCommand(deps), "transcript", path, "-d", dir, "-r", "A=Alice", "-r", "B=Bob")
		require.NoError(t, err)
		target := filepath.Join(dir, "transcript-2026-10-17.txt")
		assert.Contains(t, out, "Wrote "+target)

		body, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "[0:00] Alice: hello\n\n[1:05] Bob: world", string(body))
		assert.Equal(t, []string{"events.scribe.export.created"}, fake.channels)
	})

	t.Run("calendar", func(t *testing.T) {
		dir := t.TempDir()
		_, _, err := execute(t, NewExportCommand(testDeps(t, nil)), "calendar", path, "-d", dir, "--event", "0")
		require.NoError(t, err)

		body, err := os.ReadFile(filepath.Join(dir, "Kickoff_Call.ics"))
		require.NoError(t, err)
		assert.Contains(t, string(body), "BEGIN:VEVENT\r\n")
		assert.Contains(t, string(body), "DTSTAMP:20261017T093000Z\r\n")
	})

	t.Run("calendar out of range", func(t *testing.T) {
		_, _, err := execute(t, NewExportCommand(testDeps(t, nil)), "calendar", path, "-d", t.TempDir(), "--event", "3")
		require.Error(t, err)
		assert.True(t, scerrors.IsNotFound(err))
	})

	t.Run("calendar all without events", func(t *testing.T) {
		bare := writeTemp(t, "bare.json", `[{"speaker":"A","text":"hi","start":0,"end":1}]`)
		out, _, err := execute(t, NewExportCommand(testDeps(t, nil)), "calendar", bare, "-d", t.TempDir(), "--all")
		require.NoError(t, err)
		assert.Contains(t, out, "No upcoming meetings")
	})

	t.Run("calendar all with repeated titles", func(t *testing.T) {
		result := sampleResult()
		result.Insights.CalendarEvents = []meeting.CalendarEvent{
			{Title: "Sync", Date: "Monday"},
			{Title: "Sync", Date: "Tuesday"},
			{Title: "Sync", Date: "Wednesday"},
		}
		data, err := json.Marshal(result)
		require.NoError(t, err)
		repeated := writeTemp(t, "repeated.json", string(data))
		dir := t.TempDir()

		out, _, err := execute(t, NewExportCommand(testDeps(t, nil)), "calendar", repeated, "-d", dir, "--all")
		require.NoError(t, err)

		for name, date := range map[string]string{
			"Sync.ics":   "Monday",
			"Sync-2.ics": "Tuesday",
			"Sync-3.ics": "Wednesday",
		} {
			body, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err, name)
			assert.Contains(t, string(body), date, name)
			assert.Contains(t, out, "Wrote "+filepath.Join(dir, name))
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		out, _, err := execute(t, NewStatusCommand(testDeps(t, &fakeBackend{})))
		require.NoError(t, err)
		assert.Contains(t, out, "Backend status: HEALTHY")
		assert.Contains(t, out, "Meeting backend ready")
		assert.Contains(t, out, "http://localhost:8000/upload")
	})

	t.Run("unreachable is reported", func(t *testing.T) {
		deps := testDeps(t, &fakeBackend{pingErr: errors.New("connection refused")})
		out, _, err := execute(t, NewStatusCommand(deps), "-o", "json")
		require.NoError(t, err)

		var report StatusReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.False(t, report.Healthy)
		assert.Contains(t, report.Error, "connection refused")
	})
}

func TestHistory_NotConfigured(t *testing.T) {
	_, _, err := execute(t, NewHistoryCommand(testDeps(t, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command log is not configured")
}

func TestAuthLifecycle(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_DIR", t.TempDir())
	t.Setenv("SCRIBE_ENCRYPTION_KEY", strings.Repeat("ab", 32))
	t.Setenv("SCRIBE_API_KEY", "")

	deps := testDeps(t, &fakeBackend{})
	deps.CredentialStore = DefaultDeps().CredentialStore

	out, _, err := execute(t, NewAuthCommand(deps), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored API key: none")

	out, _, err = execute(t, NewAuthCommand(deps), "login", "--api-key", "sk-test-123456", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "sk-t********...")

	out, _, err = execute(t, NewAuthCommand(deps), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend: http://localhost:8000")
	assert.Contains(t, out, "Active source: stored credentials")

	out, _, err = execute(t, NewAuthCommand(deps), "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestAuthLogin_Prompt(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_DIR", t.TempDir())
	t.Setenv("SCRIBE_ENCRYPTION_KEY", strings.Repeat("cd", 32))

	deps := testDeps(t, nil)
	deps.CredentialStore = DefaultDeps().CredentialStore

	c := NewAuthCommand(deps)
	c.SetIn(strings.NewReader("sk-from-stdin\n"))
	_, _, err := execute(t, c, "login")
	require.NoError(t, err)

	store, err := deps.CredentialStore()
	require.NoError(t, err)
	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-stdin", creds.APIKey)
}

func TestAuthLogin_Rejected(t *testing.T) {
	deps := testDeps(t, nil)
	_, _, err := execute(t, NewAuthCommand(deps), "login", "--non-interactive")
	assert.Error(t, err)

	_, _, err = execute(t, NewAuthCommand(deps), "login", "--api-key", "short")
	assert.EqualError(t, err, "API key is too short")
}

func TestParseRenames(t *testing.T) {
	got, err := parseRenames([]string{"A=Alice", " Speaker 1 = Dr. Who ", "B=x=y"})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"A", "Alice"}, {"Speaker 1", "Dr. Who"}, {"B", "x=y"}}, got)

	for _, bad := range []string{"A", "=Alice", "A=", " = "} {
		_, err := parseRenames([]string{bad})
		assert.True(t, scerrors.IsValidation(err), bad)
	}
}

func TestBuildServer(t *testing.T) {
	deps := testDeps(t, &fakeBackend{result: sampleResult()})
	srv, addr, cleanup, err := buildServer(context.Background(), deps, "127.0.0.1:0")
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:0", addr)
}
