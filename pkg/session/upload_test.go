package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
)

// fakeBackend returns a canned result or error and records what it was sent.
type fakeBackend struct {
	result  *meeting.Result
	err     error
	gotName string
	gotBody string
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) Upload(ctx context.Context, filename string, r io.Reader) (*meeting.Result, error) {
	data, _ := io.ReadAll(r)
	f.gotName = filename
	f.gotBody = string(data)
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestUploader_Success(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SelectFile("standup.mp3", 5))
	backend := &fakeBackend{result: sampleResult()}

	var hooked HistoryEntry
	u := NewUploader(store, backend, WithCompletionHook(func(_ context.Context, e HistoryEntry, r *meeting.Result) {
		hooked = e
		assert.Len(t, r.Segments, 3)
	}))

	entry, err := u.Upload(context.Background(), strings.NewReader("audio"))
	require.NoError(t, err)

	assert.Equal(t, "standup.mp3", backend.gotName)
	assert.Equal(t, "audio", backend.gotBody)
	assert.Equal(t, entry.ID, hooked.ID)

	st := store.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, ViewTranscript, st.View)
	assert.Len(t, st.Transcript, 3)
	assert.Empty(t, st.Notice)
}

func TestUploader_FailureLeavesPriorState(t *testing.T) {
	store := loadedStore(t)
	require.NoError(t, store.Rename("A", "Alice"))
	require.NoError(t, store.SelectView("upload"))
	require.NoError(t, store.SelectFile("broken.mp3", 5))
	before := store.Snapshot()

	cause := fmt.Errorf("%w: backend returned 500", scerrors.ErrUploadFailed)
	hookCalled := false
	u := NewUploader(store, &fakeBackend{err: cause}, WithCompletionHook(func(context.Context, HistoryEntry, *meeting.Result) {
		hookCalled = true
	}))

	_, err := u.Upload(context.Background(), strings.NewReader("audio"))
	require.Error(t, err)
	assert.True(t, scerrors.IsUploadFailed(err))
	assert.False(t, hookCalled)

	after := store.Snapshot()
	assert.False(t, after.Loading)
	assert.Equal(t, "Failed to process audio. Please check if the backend is running and your API key is set.", after.Notice)
	assert.Equal(t, before.Transcript, after.Transcript)
	assert.Equal(t, before.Speakers.Names(), after.Speakers.Names())
	assert.Equal(t, before.Insights, after.Insights)
	assert.Equal(t, ViewUpload, after.View)
	assert.Len(t, after.History, 1)
}

func TestUploader_NoFileSelected(t *testing.T) {
	store := NewStore()
	backend := &fakeBackend{result: sampleResult()}
	u := NewUploader(store, backend)

	_, err := u.Upload(context.Background(), strings.NewReader("audio"))
	assert.ErrorIs(t, err, ErrNoFileSelected)
	assert.Empty(t, backend.gotName, "backend must not be called")
	assert.Empty(t, store.Snapshot().Notice)
}

func TestUploader_LoadingDuringCall(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SelectFile("standup.mp3", 5))
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	backend := &fakeBackend{
		result:  sampleResult(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	u := NewUploader(store, backend, WithMetrics(metrics))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := u.Upload(context.Background(), strings.NewReader("audio"))
		assert.NoError(t, err)
	}()

	<-backend.started
	assert.True(t, store.Snapshot().Loading)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UploadsRunning))

	// A second upload is refused while the first is in flight, and the
	// store can still be read and navigated.
	_, err := u.Upload(context.Background(), strings.NewReader("audio"))
	assert.ErrorIs(t, err, ErrUploadInFlight)
	require.NoError(t, store.SelectView("history"))

	close(backend.release)
	wg.Wait()

	assert.False(t, store.Snapshot().Loading)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.UploadsRunning))
}

func TestUploader_UploadFile(t *testing.T) {
	store := NewStore()
	backend := &fakeBackend{result: sampleResult()}
	u := NewUploader(store, backend)

	entry, err := u.UploadFile(context.Background(), "retro.m4a", 5, strings.NewReader("audio"))
	require.NoError(t, err)
	assert.Equal(t, "retro.m4a", backend.gotName)
	assert.Equal(t, "retro.m4a", entry.Source)

	st := store.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, "retro.m4a", st.Source)
}

func TestUploader_UploadFileRefusedInFlight(t *testing.T) {
	store := NewStore()
	backend := &fakeBackend{
		result:  sampleResult(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	u := NewUploader(store, backend)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := u.UploadFile(context.Background(), "first.mp3", 5, strings.NewReader("audio"))
		assert.NoError(t, err)
	}()
	<-backend.started

	_, err := u.UploadFile(context.Background(), "second.mp3", 5, strings.NewReader("audio"))
	assert.ErrorIs(t, err, ErrUploadInFlight)
	assert.Equal(t, "first.mp3", store.Snapshot().File.Name)

	close(backend.release)
	wg.Wait()

	st := store.Snapshot()
	require.Len(t, st.History, 1)
	assert.Equal(t, "first.mp3", st.History[0].Source)
}

func TestUploader_ErrorIsWrapped(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SelectFile("x.ogg", 1))
	sentinel := errors.New("connection refused")
	u := NewUploader(store, &fakeBackend{err: sentinel})

	_, err := u.Upload(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "x.ogg")
}
