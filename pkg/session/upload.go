package session

import (
	"context"
	"fmt"
	"io"

	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
)

// Backend submits audio and returns the decoded transcript.
// *client.Client satisfies it.
type Backend interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*meeting.Result, error)
}

// CompletionHook is told about each successful upload after the store is updated.
type CompletionHook func(ctx context.Context, entry HistoryEntry, result *meeting.Result)

// Uploader runs the upload flow against a Store.
type Uploader struct {
	store      *Store
	backend    Backend
	log        logging.Logger
	metrics    *observability.Metrics
	onComplete CompletionHook
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) UploaderOption {
	return func(u *Uploader) { u.log = l }
}

// WithMetrics records the in-flight gauge.
func WithMetrics(m *observability.Metrics) UploaderOption {
	return func(u *Uploader) { u.metrics = m }
}

// WithCompletionHook registers a callback for successful uploads.
func WithCompletionHook(h CompletionHook) UploaderOption {
	return func(u *Uploader) { u.onComplete = h }
}

// NewUploader creates an Uploader.
func NewUploader(store *Store, backend Backend, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		store:   store,
		backend: backend,
		log:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends the selected file's contents, read from r, to the backend.
//
// The store is marked loading for the duration of the call and the backend
// is called outside the store's lock. On success the transcript, insights
// and speaker mapping are replaced together. On failure they are left as
// they were and the failure notice is raised. Loading is cleared either way.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (*HistoryEntry, error) {
	file, err := u.store.BeginUpload()
	if err != nil {
		return nil, err
	}
	return u.run(ctx, file, r)
}

// UploadFile selects name and starts its upload atomically, then behaves
// like Upload. Concurrent callers use this so the file recorded for the
// in-flight upload is always the one being sent.
func (u *Uploader) UploadFile(ctx context.Context, name string, size int64, r io.Reader) (*HistoryEntry, error) {
	file, err := u.store.BeginUploadFile(name, size)
	if err != nil {
		return nil, err
	}
	return u.run(ctx, file, r)
}

func (u *Uploader) run(ctx context.Context, file SelectedFile, r io.Reader) (*HistoryEntry, error) {
	u.metrics.SetUploading(true)
	defer u.metrics.SetUploading(false)

	log := u.log.WithContext(ctx).With(logging.F("file", file.Name))
	log.Info("Upload started", logging.F("size", file.Size))

	result, err := u.backend.Upload(ctx, file.Name, r)
	if err != nil {
		u.store.FailUpload()
		log.Error("Upload failed", logging.Err(err))
		return nil, fmt.Errorf("uploading %s: %w", file.Name, err)
	}

	entry, err := u.store.CompleteUpload(result)
	if err != nil {
		// Only reachable if something else ended the upload.
		u.store.FailUpload()
		return nil, err
	}
	log.Info("Upload complete",
		logging.F("segments", entry.Segments),
		logging.F("speakers", entry.Speakers),
	)

	if u.onComplete != nil {
		u.onComplete(ctx, entry, result)
	}
	return &entry, nil
}
