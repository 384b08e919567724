// Package client provides the HTTP client for the transcription backend.
// It handles the multipart audio upload, response decoding, and health checking.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otherjamesbrown/scribe-cli/config"
	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
	"github.com/otherjamesbrown/scribe-cli/pkg/observability"
)

// FormField is the multipart field the backend reads the audio file from.
const FormField = "file"

// Default client settings.
const (
	DefaultTimeout        = 10 * time.Minute
	DefaultMaxUploadBytes = 50 << 20
	// maxErrorBody bounds how much of a failed response is kept for logging.
	maxErrorBody = 4 << 10
)

// AllowedExtensions are the audio types the backend accepts.
var AllowedExtensions = []string{".mp3", ".wav", ".m4a", ".ogg"}

// audioTypes pins part content types; the mime package's builtin table has
// no audio entries and system tables vary.
var audioTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
	".ogg": "audio/ogg",
}

// ErrFileTooLarge is returned (wrapped in ErrUploadFailed) when the audio
// exceeds the configured upload limit.
var ErrFileTooLarge = errors.New("file exceeds upload limit")

// Options configures the Client behavior.
type Options struct {
	// Timeout bounds each request, including the transcription wait.
	Timeout time.Duration

	// MaxUploadBytes is the largest accepted audio file. Zero disables the check.
	MaxUploadBytes int64

	// APIKey is sent as a bearer token when set.
	APIKey string

	// TLSConfig is used for https backends. Nil keeps Go's defaults.
	TLSConfig *tls.Config

	// HTTPClient overrides the transport entirely (tests, proxies).
	HTTPClient *http.Client

	// Logger receives request-level diagnostics. Defaults to a nop logger.
	Logger logging.Logger

	// Metrics records upload outcomes. Optional.
	Metrics *observability.Metrics
}

// DefaultOptions returns Options with default values.
func DefaultOptions() *Options {
	return &Options{
		Timeout:        DefaultTimeout,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// Client talks to the transcription backend over HTTP.
type Client struct {
	baseURL   string
	uploadURL string
	http      *http.Client
	opts      *Options
	log       logging.Logger
	tracer    *observability.Tracer
}

// PingResult describes a reachable backend.
type PingResult struct {
	StatusCode int           `json:"status_code"`
	Message    string        `json:"message,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// New creates a Client for the backend at baseURL with uploads posted to uploadPath.
func New(baseURL, uploadPath string, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.TLSConfig != nil {
			transport.TLSClientConfig = opts.TLSConfig
		}
		httpClient = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:   base,
		uploadURL: base + uploadPath,
		http:      httpClient,
		opts:      opts,
		log:       log.With(logging.F("backend", base)),
		tracer:    observability.NewTracer(),
	}
}

// FromConfig creates a Client using CLIConfig.
// This is the canonical way to create a client from CLI commands.
func FromConfig(cfg *config.CLIConfig, apiKey string, log logging.Logger) (*Client, error) {
	opts := DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.MaxUploadBytes = cfg.MaxUploadBytes()
	opts.APIKey = apiKey
	opts.Logger = log

	tlsConfig, err := LoadClientTLSConfig(&cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("loading TLS config: %w", err)
	}
	opts.TLSConfig = tlsConfig

	return New(cfg.BackendURL, cfg.UploadPath, opts), nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadURL returns the full upload endpoint.
func (c *Client) UploadURL() string {
	return c.uploadURL
}

// SetMetrics attaches upload metrics after construction.
func (c *Client) SetMetrics(m *observability.Metrics) {
	c.opts.Metrics = m
}

// CheckAudioFile validates a file name and size against the backend contract.
// A negative size skips the size check.
func CheckAudioFile(filename string, size, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: unsupported file type %q (expected one of %s)",
			scerrors.ErrValidation, ext, strings.Join(AllowedExtensions, ", "))
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, maxBytes)
	}
	return nil
}

// UploadFile opens path and uploads it.
func (c *Client) UploadFile(ctx context.Context, path string) (*meeting.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scerrors.ErrUploadFailed, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", scerrors.ErrUploadFailed, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scerrors.ErrUploadFailed, err)
	}
	defer f.Close()

	return c.upload(ctx, filepath.Base(path), f, info.Size())
}

// Upload posts one audio file as a multipart body and decodes the transcript.
// Every failure, whether rejected locally, unreachable, non-2xx or a body of
// the wrong shape, is returned wrapping ErrUploadFailed.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*meeting.Result, error) {
	return c.upload(ctx, filename, r, -1)
}

func (c *Client) upload(ctx context.Context, filename string, r io.Reader, size int64) (*meeting.Result, error) {
	started := time.Now()
	ctx, span := c.tracer.StartUploadSpan(ctx, filename, size)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := c.log.WithContext(ctx).With(logging.F("file", filename))

	fail := func(status, kind string, err error) (*meeting.Result, error) {
		helper.SetError(err, kind)
		c.opts.Metrics.RecordUpload(status, time.Since(started).Seconds(), 0)
		log.Warn("Upload failed", logging.F("kind", kind), logging.Err(err))
		return nil, fmt.Errorf("%w: %w", scerrors.ErrUploadFailed, err)
	}

	if err := CheckAudioFile(filename, size, c.opts.MaxUploadBytes); err != nil {
		return fail(observability.StatusRejected, "preflight", err)
	}

	body, contentType := c.multipartBody(filename, r)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		body.Close()
		return fail(observability.StatusFailure, "request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	log.Debug("Uploading audio", logging.F("url", c.uploadURL), logging.F("size", size))
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return fail(observability.StatusRejected, "preflight", err)
		}
		return fail(observability.StatusFailure, "transport", err)
	}
	defer resp.Body.Close()
	helper.SetHTTPStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(observability.StatusFailure, "status", statusError(resp))
	}

	result, err := meeting.DecodeJSON(resp.Body)
	if err != nil {
		return fail(observability.StatusFailure, "decode", err)
	}

	speakers := meeting.SpeakerCount(result.Segments)
	helper.SetTranscript(len(result.Segments), speakers)
	helper.SetSuccess()
	c.opts.Metrics.RecordUpload(observability.StatusSuccess, time.Since(started).Seconds(), len(result.Segments))
	log.Info("Transcript received",
		logging.F("segments", len(result.Segments)),
		logging.F("speakers", speakers),
		logging.F("elapsed", time.Since(started)),
	)
	return result, nil
}

// multipartBody streams r into a single-part form through a pipe so large
// files are never buffered in memory.
func (c *Client) multipartBody(filename string, r io.Reader) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, filepath.Base(filename)))
		ext := strings.ToLower(filepath.Ext(filename))
		ctype := audioTypes[ext]
		if ctype == "" {
			ctype = mime.TypeByExtension(ext)
		}
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h.Set("Content-Type", ctype)

		part, err := mw.CreatePart(h)
		if err == nil {
			err = copyLimited(part, r, c.opts.MaxUploadBytes)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

// copyLimited copies r to w, failing once more than limit bytes are seen.
func copyLimited(w io.Writer, r io.Reader, limit int64) error {
	if limit <= 0 {
		_, err := io.Copy(w, r)
		return err
	}
	n, err := io.Copy(w, io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
}

// statusError builds an error from a non-2xx response, preferring the
// backend's {"detail": ...} message when present.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil {
			return fmt.Errorf("backend returned %d: %s", resp.StatusCode, detail)
		}
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, payload.Detail)
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return fmt.Errorf("backend returned %d: %s", resp.StatusCode, msg)
}

// Ping performs a GET on the backend root and reports its status message.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	ctx, span := c.tracer.StartPingSpan(ctx)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		helper.SetError(err, "transport")
		return nil, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	helper.SetHTTPStatus(resp.StatusCode)

	result := &PingResult{StatusCode: resp.StatusCode, Latency: time.Since(started)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(resp)
		helper.SetError(err, "status")
		return result, err
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil {
		result.Message = body.Message
	}
	helper.SetSuccess()
	return result, nil
}
