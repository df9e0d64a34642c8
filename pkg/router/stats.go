package router

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

type Direction int

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

func (d Direction) String() string {
	if d == DirectionIn {
		return "in"
	}
	return "out"
}

// DefaultStatsFlushEvery is how many stats are buffered before they are
// appended to the diagnostics file.
const DefaultStatsFlushEvery = 100

type MessageStat struct {
	PeerID      string
	MsgType     string
	Direction   Direction
	ContentSize int
}

// StatsRecorder buffers MessageStats and appends them, tab separated, to a
// per-peer diagnostics file. An empty path keeps the counting but discards
// the rows.
type StatsRecorder struct {
	mu         sync.Mutex
	path       string
	flushEvery int
	buf        []MessageStat
	logger     *zap.Logger
}

func NewStatsRecorder(path string, flushEvery int, logger *zap.Logger) *StatsRecorder {
	if flushEvery <= 0 {
		flushEvery = DefaultStatsFlushEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsRecorder{
		path:       path,
		flushEvery: flushEvery,
		buf:        make([]MessageStat, 0, flushEvery),
		logger:     logger,
	}
}

func (s *StatsRecorder) SetPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

func (s *StatsRecorder) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *StatsRecorder) Record(st MessageStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, st)
	if len(s.buf) >= s.flushEvery {
		if err := s.flushLocked(); err != nil {
			s.logger.Warn("dump message stats", zap.String("file", s.path), zap.Error(err))
		}
	}
}

func (s *StatsRecorder) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *StatsRecorder) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked clears the buffer even when the write fails; diagnostics are best effort.
func (s *StatsRecorder) flushLocked() error {
	defer func() { s.buf = s.buf[:0] }()
	if s.path == "" || len(s.buf) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	for _, st := range s.buf {
		_ = w.Write([]string{
			st.PeerID,
			st.MsgType,
			strconv.Itoa(int(st.Direction)),
			strconv.Itoa(st.ContentSize),
		})
	}
	w.Flush()
	return errors.Join(w.Error(), f.Close())
}

// ReadStats parses a diagnostics file written by a StatsRecorder.
func ReadStats(r io.Reader) ([]MessageStat, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = 4
	cr.LazyQuotes = true

	var out []MessageStat
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		dir, err := strconv.Atoi(rec[2])
		if err != nil || (dir != 0 && dir != 1) {
			return out, fmt.Errorf("stats line %d: bad direction %q", line, rec[2])
		}
		size, err := strconv.Atoi(rec[3])
		if err != nil {
			return out, fmt.Errorf("stats line %d: bad size %q", line, rec[3])
		}
		out = append(out, MessageStat{
			PeerID:      rec[0],
			MsgType:     rec[1],
			Direction:   Direction(dir),
			ContentSize: size,
		})
	}
}
