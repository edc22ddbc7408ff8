package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"hft/internal/schema"
)

var (
	ErrQueueFull      = errors.New("wal: queue full")
	ErrClosed         = errors.New("wal: writer closed")
	ErrNotStarted     = errors.New("wal: writer not started")
	ErrAlreadyStarted = errors.New("wal: writer already started")
)

const (
	maxPayloadLen = 1 << 24
	appendRetry   = time.Millisecond
)

// Writer appends records to rotating segment files from a bounded queue.
// TryAppend never blocks the caller.
type Writer struct {
	cfg Config
	ch  chan record
	wg  sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	err atomic.Pointer[error]
}

type record struct {
	header  schema.EventHeader
	payload []byte
}

// NewWriter validates cfg and creates the segment directory.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{cfg: cfg, ch: make(chan record, cfg.QueueSize)}, nil
}

// Start launches the writer loop.
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	if w.closed {
		return ErrClosed
	}
	w.started = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close drains the queue, flushes and syncs the open segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.Err()
}

// Err returns the first write error, after which the writer stops.
func (w *Writer) Err() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

// TryAppend enqueues a record. The writer takes ownership of payload.
func (w *Writer) TryAppend(header schema.EventHeader, payload []byte) error {
	if len(payload) > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	if err := w.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	if !w.started {
		return ErrNotStarted
	}
	if header.Version == 0 {
		header.Version = schema.EventVersion
	}

	select {
	case w.ch <- record{header: header, payload: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Append is TryAppend for offline tools: it waits for queue space instead of
// dropping the record.
func (w *Writer) Append(ctx context.Context, header schema.EventHeader, payload []byte) error {
	for {
		err := w.TryAppend(header, payload)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		t := time.NewTimer(appendRetry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg    *segment
		seq    uint64
		header = make([]byte, recordHeaderSize)
		flushC <-chan time.Time
		syncC  <-chan time.Time
	)
	if w.cfg.FlushInterval > 0 {
		t := time.NewTicker(w.cfg.FlushInterval)
		defer t.Stop()
		flushC = t.C
	}
	if w.cfg.SyncInterval > 0 {
		t := time.NewTicker(w.cfg.SyncInterval)
		defer t.Stop()
		syncC = t.C
	}
	defer func() {
		if err := seg.close(); err != nil {
			w.fail(err)
		}
	}()

	write := func(rec record) bool {
		now := time.Now().UTC()
		size := int64(recordHeaderSize + len(rec.payload) + recordChecksumSize)
		if w.shouldRotate(seg, now, size) {
			err := seg.close()
			seg = nil
			if err != nil {
				w.fail(err)
				return false
			}
			next, err := w.open(&seq, now)
			if err != nil {
				w.fail(err)
				return false
			}
			seg = next
		}
		if err := seg.write(header, rec); err != nil {
			w.fail(err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec, ok := <-w.ch:
					if !ok || !write(rec) {
						return
					}
				default:
					return
				}
			}
		case rec, ok := <-w.ch:
			if !ok || !write(rec) {
				return
			}
		case <-flushC:
			if err := seg.flush(); err != nil {
				w.fail(err)
				return
			}
		case <-syncC:
			if err := seg.sync(); err != nil {
				w.fail(err)
				return
			}
		}
	}
}

func (w *Writer) shouldRotate(seg *segment, now time.Time, next int64) bool {
	if seg == nil {
		return true
	}
	if seg.size+next > w.cfg.SegmentMaxBytes {
		return true
	}
	return w.cfg.SegmentMaxAge > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxAge
}

func (w *Writer) open(seq *uint64, now time.Time) (*segment, error) {
	ts := now.Format("20060102-150405")
	for {
		*seq++
		name := fmt.Sprintf("%s-%s-%06d.wal", w.cfg.FilePrefix, ts, *seq)
		file, err := os.OpenFile(filepath.Join(w.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, err
		}
		logs.Debugf("wal segment opened: %s", name)
		return &segment{
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func (w *Writer) fail(err error) {
	if err == nil {
		return
	}
	if w.err.CompareAndSwap(nil, &err) {
		logs.WithError(err).Error("wal writer stopped")
	}
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func (s *segment) write(header []byte, rec record) error {
	encodeHeader(header, rec.header, len(rec.payload))
	var sum [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(sum[:], checksum(header, rec.payload))

	if _, err := s.buf.Write(header); err != nil {
		return err
	}
	if _, err := s.buf.Write(rec.payload); err != nil {
		return err
	}
	if _, err := s.buf.Write(sum[:]); err != nil {
		return err
	}
	s.size += int64(len(header) + len(rec.payload) + len(sum))
	return nil
}

func (s *segment) flush() error {
	if s == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *segment) sync() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	if err := s.sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
