// Package auditlog buffers remote mutation responses in memory and appends
// them to a JSON Lines file named after the day the run started.
package auditlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// Config holds the audit file settings
type Config struct {
	Dir         string
	Prefix      string
	MaxBuffered int
}

const (
	defaultPrefix      = "response"
	defaultMaxBuffered = 10000
)

// Buffer implements integration.MutationLog.
// Entries that fail to flush stay buffered for the next attempt; beyond
// MaxBuffered the oldest entries are dropped.
type Buffer struct {
	mu          sync.Mutex
	entries     []integration.MutationLogEntry
	path        string
	maxBuffered int
	dropped     int
	logger      *zap.Logger
}

// NewBuffer creates a buffer whose file is dated by runStart (UTC)
func NewBuffer(cfg Config, runStart time.Time, logger *zap.Logger) *Buffer {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = defaultMaxBuffered
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	name := fmt.Sprintf("%s-%s.jsonl", cfg.Prefix, runStart.UTC().Format("2006-01-02"))
	return &Buffer{
		path:        filepath.Join(cfg.Dir, name),
		maxBuffered: cfg.MaxBuffered,
		logger:      logger.Named("auditlog"),
	}
}

// NewFactory returns a MutationLogFactory producing buffers with cfg
func NewFactory(cfg Config, logger *zap.Logger) integration.MutationLogFactory {
	return func(runStart time.Time) integration.MutationLog {
		return NewBuffer(cfg, runStart, logger)
	}
}

var _ integration.MutationLog = (*Buffer)(nil)

// Record appends an entry
func (b *Buffer) Record(entry integration.MutationLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)
	b.trimLocked()
}

// Size returns the number of buffered entries
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Path returns the file entries are appended to
func (b *Buffer) Path() string {
	return b.path
}

// Dropped returns how many entries were discarded because the buffer was full
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Flush appends all buffered entries to the file, one compact JSON object per line.
// It returns the number of entries written; on failure it logs, keeps the
// entries and returns 0.
func (b *Buffer) Flush() int {
	b.mu.Lock()
	if len(b.entries) == 0 {
		b.mu.Unlock()
		return 0
	}
	pending := b.entries
	b.entries = nil
	b.mu.Unlock()

	if err := b.write(pending); err != nil {
		b.logger.Error("Failed to write audit log entries",
			zap.String("path", b.path),
			zap.Int("entries", len(pending)),
			zap.Error(err),
		)
		b.requeue(pending)
		return 0
	}

	b.logger.Debug("Flushed audit log entries",
		zap.String("path", b.path),
		zap.Int("entries", len(pending)),
	)
	return len(pending)
}

func (b *Buffer) write(entries []integration.MutationLogEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range entries {
		// Encode terminates each object with a newline
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode entry for product %d: %w", entries[i].ProductID, err)
		}
	}

	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// requeue puts unwritten entries back in front of anything recorded meanwhile
func (b *Buffer) requeue(pending []integration.MutationLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(pending, b.entries...)
	b.trimLocked()
}

func (b *Buffer) trimLocked() {
	over := len(b.entries) - b.maxBuffered
	if over <= 0 {
		return
	}
	b.entries = b.entries[over:]
	b.dropped += over
	b.logger.Warn("Audit log buffer full, dropping oldest entries",
		zap.Int("dropped", over),
		zap.Int("max_buffered", b.maxBuffered),
	)
}
