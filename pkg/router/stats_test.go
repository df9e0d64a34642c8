package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadStatsRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"direction": "A\tCMD\t7\t3\n",
		"size":      "A\tCMD\t0\tlots\n",
		"columns":   "A\tCMD\t0\n",
	}
	for name, in := range cases {
		if _, err := ReadStats(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestStatsRecorderWithoutPathDiscards(t *testing.T) {
	s := NewStatsRecorder("", 2, nil)
	s.Record(MessageStat{PeerID: "A"})
	s.Record(MessageStat{PeerID: "B"})
	if got := s.Buffered(); got != 0 {
		t.Fatalf("Buffered = %d, want 0 after reaching flushEvery", got)
	}
}

func TestStatsRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "X.stats")
	s := NewStatsRecorder(path, 10, nil)

	s.Record(MessageStat{PeerID: "A", MsgType: "CMD", Direction: DirectionOut, ContentSize: 4})
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	s.Record(MessageStat{PeerID: "B", MsgType: "DATA", Direction: DirectionIn, ContentSize: 9})
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "A\tCMD\t0\t4\nB\tDATA\t1\t9\n"
	if string(raw) != want {
		t.Fatalf("file = %q, want %q", raw, want)
	}
}
