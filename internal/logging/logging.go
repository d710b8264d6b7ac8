// Package logging is the async log sink named by the `log_file` config
// key (§6): a bounded channel drained by one goroutine so a hot trading
// thread's log call never blocks on disk I/O, feeding a zap core. Rotated
// files are gzipped with github.com/klauspost/compress/gzip, grounded on
// abdoElHodaky/tradSys's internal/performance.MessageCompressor (which
// reaches for the klauspost/compress family rather than stdlib
// compress/gzip for anything performance-sensitive), and repeated
// identical lines are throttled with golang.org/x/time/rate, grounded on
// the same teacher's internal/gateway/middleware.go rate limiter pattern.
package logging

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// Level mirrors the DEBUG..CRITICAL scale from §6's config table.
type Level uint8

const (
	Debug Level = iota
	Info
	Warning
	Error
	Critical
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warning:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel // CRITICAL: closest zap has without calling os.Exit
	}
}

// record is one queued log line.
type record struct {
	level   Level
	message string
	fields  []zap.Field
}

// Sink is a bounded-channel async logger. Lines that can't fit once the
// channel is full are dropped, never block the caller (§7: hot paths
// never block on logging).
type Sink struct {
	ch       chan record
	wg       sync.WaitGroup
	logger   *zap.Logger
	minLevel Level
	dedup    time.Duration
	limiters sync.Map // message -> *rate.Limiter, one per distinct line

	dropped uint64
	mu      sync.Mutex
}

// Config tunes the sink.
type Config struct {
	MinLevel      Level
	QueueSize     int
	DedupInterval time.Duration // minimum gap between identical repeated lines
}

// New constructs a sink writing through base (already configured with
// whatever zapcore.WriteSyncer the caller wants, e.g. a rotating file).
func New(base *zap.Logger, cfg Config) *Sink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.DedupInterval <= 0 {
		cfg.DedupInterval = time.Second
	}
	s := &Sink{
		ch:       make(chan record, cfg.QueueSize),
		logger:   base,
		minLevel: cfg.MinLevel,
		dedup:    cfg.DedupInterval,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Log enqueues a line if it meets the level threshold and passes the
// duplicate-line throttle, dropping it silently otherwise.
func (s *Sink) Log(level Level, message string, fields ...zap.Field) {
	if level < s.minLevel {
		return
	}
	if !s.allowed(message) {
		return
	}
	select {
	case s.ch <- record{level: level, message: message, fields: fields}:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// allowed reports whether message may be emitted now, per its own
// rate.Limiter, so a hot-path spin logging the same warning repeatedly
// can't flood disk.
func (s *Sink) allowed(message string) bool {
	v, _ := s.limiters.LoadOrStore(message, rate.NewLimiter(rate.Every(s.dedup), 1))
	return v.(*rate.Limiter).Allow()
}

func (s *Sink) run() {
	defer s.wg.Done()
	for rec := range s.ch {
		switch rec.level {
		case Debug:
			s.logger.Debug(rec.message, rec.fields...)
		case Info:
			s.logger.Info(rec.message, rec.fields...)
		case Warning:
			s.logger.Warn(rec.message, rec.fields...)
		case Error:
			s.logger.Error(rec.message, rec.fields...)
		default:
			s.logger.Error(rec.message, rec.fields...)
		}
	}
}

// Dropped returns how many lines were discarded because the queue was
// full.
func (s *Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close drains the queue and stops the background goroutine.
func (s *Sink) Close() error {
	close(s.ch)
	s.wg.Wait()
	return s.logger.Sync()
}

// gzipRotatingWriter wraps an *os.File, gzip-compressing its previous
// contents on Rotate rather than keeping an ever-growing plain-text file.
type gzipRotatingWriter struct {
	path string
	file *os.File
}

// NewGzipRotatingWriter opens path for appending, creating it if absent.
func NewGzipRotatingWriter(path string) (*gzipRotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &gzipRotatingWriter{path: path, file: f}, nil
}

func (w *gzipRotatingWriter) Write(p []byte) (int, error) { return w.file.Write(p) }
func (w *gzipRotatingWriter) Sync() error                 { return w.file.Sync() }

// Rotate closes the current file, gzips it alongside with a .gz suffix,
// removes the uncompressed original, and reopens path fresh.
func (w *gzipRotatingWriter) Rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	src, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(w.path + ".gz")
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(dst)
	if _, err := copyAll(gz, src); err != nil {
		dst.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	if err := os.Remove(w.path); err != nil {
		return err
	}

	w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	return err
}

func copyAll(dst *gzip.Writer, src *os.File) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			total += int64(w)
			if werr != nil {
				return total, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}
