package sys

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeReplay(t *testing.T, records ...[]byte) string {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range records {
		buf.WriteByte(byte(len(r) >> 8))
		buf.WriteByte(byte(len(r)))
		buf.Write(r)
	}
	path := filepath.Join(t.TempDir(), "rip.capture")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayReadsRecords(t *testing.T) {
	first := []byte{0x02, 0x02, 0x00, 0x00}
	second := bytes.Repeat([]byte{0xAB}, 24)
	r, err := OpenReplay(writeReplay(t, first, second))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	buf := make([]byte, 64)
	n, err := r.ReadDatagram(buf)
	if err != nil || !bytes.Equal(buf[:n], first) {
		t.Fatalf("first record = %x, %v", buf[:n], err)
	}
	n, err = r.ReadDatagram(buf)
	if err != nil || !bytes.Equal(buf[:n], second) {
		t.Fatalf("second record = %x, %v", buf[:n], err)
	}
	if _, err := r.ReadDatagram(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("end of capture = %v, want io.EOF", err)
	}
}

func TestReplayTruncatedRecord(t *testing.T) {
	path := writeReplay(t)
	// Append a record header promising more bytes than exist.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{0x00, 0x10, 0x01}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := OpenReplay(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.ReadDatagram(make([]byte, 64)); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("truncated record error = %v, want non-EOF failure", err)
	}
}

func TestReplayRecordLargerThanBuffer(t *testing.T) {
	r, err := OpenReplay(writeReplay(t, bytes.Repeat([]byte{1}, 32)))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.ReadDatagram(make([]byte, 8)); err == nil {
		t.Fatal("oversized record fit in a small buffer")
	}
}
