package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	segmentPrefix = "segment-"
	segmentSuffix = ".jsonl"
	filePerm      = 0644

	defaultSegmentBytes = 4 << 20
	defaultMaxBytes     = 256 << 20
)

// ErrFull is returned by Write when the journal reached its size limit.
var ErrFull = errors.New("failed-event journal is full")

// Config bounds the journal on disk.
type Config struct {
	SegmentBytes int64
	MaxBytes     int64
}

// record is one journal line.
type record struct {
	JournaledAt time.Time          `json:"journaledAt"`
	Event       domain.DomainEvent `json:"event"`
}

// Journal is a segmented, append-only file journal of events whose publish
// was abandoned. It implements domain.FailedEventJournal.
//
// One process must own the directory. Replay seals the active segment and
// Truncate only removes the segments the last Replay went through, so events
// written during a replay survive it.
type Journal struct {
	dir          string
	segmentBytes int64
	maxBytes     int64
	logger       *slog.Logger

	mu          sync.Mutex
	current     *os.File
	currentSize int64
	totalSize   int64
	nextSeq     uint64
	replayed    []string
}

// Open opens or creates the journal in dir.
func Open(dir string, cfg Config, logger *slog.Logger) (*Journal, error) {
	if cfg.SegmentBytes <= 0 {
		cfg.SegmentBytes = defaultSegmentBytes
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}

	j := &Journal{
		dir:          dir,
		segmentBytes: cfg.SegmentBytes,
		maxBytes:     cfg.MaxBytes,
		logger:       logger.With("component", "event_journal"),
	}

	segments, err := j.segments()
	if err != nil {
		return nil, err
	}
	for _, path := range segments {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat segment %s: %w", path, err)
		}
		j.totalSize += info.Size()
	}
	if n := len(segments); n > 0 {
		seq, err := segmentSeq(segments[n-1])
		if err != nil {
			return nil, err
		}
		j.nextSeq = seq + 1
		if err := j.reopen(segments[n-1]); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Write appends the event and syncs it to disk before returning.
func (j *Journal) Write(ctx context.Context, event domain.DomainEvent) error {
	data, err := json.Marshal(record{JournaledAt: time.Now().UTC(), Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event for journal: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.totalSize+int64(len(data)) > j.maxBytes {
		return fmt.Errorf("%w (%d + %d > %d bytes)", ErrFull, j.totalSize, len(data), j.maxBytes)
	}
	if j.current == nil || j.currentSize >= j.segmentBytes {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	n, err := j.current.Write(data)
	j.currentSize += int64(n)
	j.totalSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write journal segment: %w", err)
	}
	if err := j.current.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal segment: %w", err)
	}
	return nil
}

// Replay hands every journaled event to handler in write order and stops at
// the first handler error. Lines that cannot be decoded are skipped.
func (j *Journal) Replay(ctx context.Context, handler func(event domain.DomainEvent) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closeCurrent()
	segments, err := j.segments()
	if err != nil {
		return err
	}
	j.replayed = nil
	if len(segments) == 0 {
		j.logger.Info("journal is empty, nothing to replay")
		return nil
	}
	j.logger.Info("starting journal replay", "segment_count", len(segments))

	for _, path := range segments {
		if err := j.replaySegment(ctx, path, handler); err != nil {
			return err
		}
		j.replayed = append(j.replayed, path)
	}

	j.logger.Info("journal replay completed", "segment_count", len(segments))
	return nil
}

func (j *Journal) replaySegment(ctx context.Context, path string, handler func(event domain.DomainEvent) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			j.logger.Warn("skipping undecodable journal line", "segment", filepath.Base(path), "error", err)
			continue
		}
		if err := handler(rec.Event); err != nil {
			j.logger.Error("journal replay handler failed, stopping replay", "event_id", rec.Event.ID, "error", err)
			return fmt.Errorf("replay handler failed: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return nil
}

// Truncate removes the segments fully handled by the last Replay.
func (j *Journal) Truncate(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for _, path := range j.replayed {
		info, statErr := os.Stat(path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove segment %s: %w", path, err))
			continue
		}
		if statErr == nil {
			j.totalSize -= info.Size()
		}
	}
	j.logger.Info("journal truncated", "segment_count", len(j.replayed)-len(errs))
	j.replayed = nil
	if j.totalSize < 0 {
		j.totalSize = 0
	}
	return errors.Join(errs...)
}

// Size returns the number of bytes held on disk.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totalSize
}

// Close closes the active segment.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		return nil
	}
	err := j.current.Close()
	j.current = nil
	return err
}

func (j *Journal) closeCurrent() {
	if j.current == nil {
		return
	}
	if err := j.current.Close(); err != nil {
		j.logger.Error("failed to close journal segment", "error", err)
	}
	j.current = nil
	j.currentSize = 0
}

func (j *Journal) rotate() error {
	j.closeCurrent()
	path := filepath.Join(j.dir, fmt.Sprintf("%s%020d%s", segmentPrefix, j.nextSeq, segmentSuffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create journal segment %s: %w", path, err)
	}
	j.nextSeq++
	j.current = f
	j.currentSize = 0
	j.logger.Debug("rotated to new journal segment", "path", path)
	return nil
}

func (j *Journal) reopen(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat segment %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	j.current = f
	j.currentSize = info.Size()
	return nil
}

// segments lists segment files in write order.
func (j *Journal) segments() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}
	var segments []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			segments = append(segments, filepath.Join(j.dir, name))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func segmentSeq(path string) (uint64, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), segmentPrefix), segmentSuffix)
	seq, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed journal segment name %s: %w", path, err)
	}
	return seq, nil
}
