package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogEntry represents a log entry to be written to a sink.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Service   string
	Message   string
	Fields    map[string]string
	TraceID   string
	RequestID string
	Caller    string
}

// LogWriter persists batches of log entries.
// *cmdlog.Client implements it against Postgres.
type LogWriter interface {
	WriteBatch(ctx context.Context, entries []LogEntry) error
}

// Sink is an interface for components that receive log entries.
type Sink interface {
	// Write queues a log entry for async processing.
	Write(entry LogEntry)
	// Flush blocks until all queued entries are written.
	Flush(ctx context.Context) error
	// Close shuts down the sink gracefully.
	Close() error
}

// DBSink is an async database log sink with buffered writes.
type DBSink struct {
	writer       LogWriter
	entryChan    chan LogEntry
	flushChan    chan chan error
	flushTicker  *time.Ticker
	batchSize    int
	minLevel     zerolog.Level
	flushTimeout time.Duration
	wg           sync.WaitGroup
	done         chan struct{}
	mu           sync.Mutex
	closed       bool
}

// DBSinkConfig configures a DBSink.
type DBSinkConfig struct {
	// Writer is the backend for persisting log entries.
	Writer LogWriter
	// BufferSize is the channel capacity (default: 1000).
	BufferSize int
	// BatchSize is the max entries per batch write (default: 100).
	BatchSize int
	// FlushInterval is how often to flush buffered entries (default: 2s).
	FlushInterval time.Duration
	// MinLevel drops entries below this level before they are queued.
	MinLevel Level
}

// NewDBSink creates a new async database log sink.
func NewDBSink(cfg DBSinkConfig) *DBSink {
	if cfg.Writer == nil {
		panic("DBSink requires a non-nil Writer")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}

	sink := &DBSink{
		writer:       cfg.Writer,
		entryChan:    make(chan LogEntry, cfg.BufferSize),
		flushChan:    make(chan chan error),
		flushTicker:  time.NewTicker(cfg.FlushInterval),
		batchSize:    cfg.BatchSize,
		minLevel:     zerolog.DebugLevel,
		flushTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}

	if cfg.MinLevel != "" {
		sink.minLevel = parseLevel(cfg.MinLevel)
	}

	sink.wg.Add(1)
	go sink.run()

	return sink
}

// Write queues a log entry for async processing.
// If the buffer is full, the entry is dropped with a note on stderr.
func (s *DBSink) Write(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if lvl, err := zerolog.ParseLevel(entry.Level); err == nil && lvl < s.minLevel {
		return
	}

	select {
	case s.entryChan <- entry:
	default:
		fmt.Fprintf(os.Stderr, "[DBSink] Buffer full, dropping log entry: %s\n", entry.Message)
	}
}

// Flush blocks until all queued entries are written.
func (s *DBSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	select {
	case s.flushChan <- errChan:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.flushTimeout):
		return fmt.Errorf("flush timeout after %v", s.flushTimeout)
	}
}

// Close drains queued entries and stops the background writer.
func (s *DBSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.flushTicker.Stop()
	s.wg.Wait()

	return nil
}

// run is the background goroutine that batches and writes log entries.
func (s *DBSink) run() {
	defer s.wg.Done()

	batch := make([]LogEntry, 0, s.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
		defer cancel()

		err := s.writer.WriteBatch(ctx, batch)
		if err != nil {
			// Never fail the caller over lost log lines.
			fmt.Fprintf(os.Stderr, "[DBSink] Failed to write batch of %d entries: %v\n", len(batch), err)
		}

		batch = batch[:0]
		return err
	}

	add := func(entry LogEntry) {
		batch = append(batch, entry)
		if len(batch) >= s.batchSize {
			_ = flush()
		}
	}

	for {
		select {
		case entry := <-s.entryChan:
			add(entry)

		case <-s.flushTicker.C:
			_ = flush()

		case errChan := <-s.flushChan:
			// Pick up everything queued before the request.
			for pending := len(s.entryChan); pending > 0; pending-- {
				add(<-s.entryChan)
			}
			errChan <- flush()

		case <-s.done:
			for {
				select {
				case entry := <-s.entryChan:
					add(entry)
				default:
					_ = flush()
					return
				}
			}
		}
	}
}

// getCaller returns the caller information (file:line) for logging.
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}
