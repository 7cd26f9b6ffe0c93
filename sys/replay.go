package sys

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// A Replay feeds the engine datagrams captured to a file instead
// of the live socket. Each record is a 16-bit big-endian length
// followed by that many datagram bytes; io.EOF ends the replay.
type Replay struct {
	f *os.File
	r *bufio.Reader
}

// OpenReplay opens a datagram capture for replay.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	return &Replay{f: f, r: bufio.NewReader(f)}, nil
}

// ReadDatagram returns the next recorded datagram, or io.EOF at the end
// of the capture.
func (s *Replay) ReadDatagram(buf []byte) (int, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("replay file truncated in record header")
		}
		return 0, err
	}
	n := int(binary.BigEndian.Uint16(hdr[:]))
	if n > len(buf) {
		return 0, fmt.Errorf("replay record of %d bytes exceeds buffer", n)
	}
	if _, err := io.ReadFull(s.r, buf[:n]); err != nil {
		return 0, fmt.Errorf("replay file truncated mid-record: %w", err)
	}
	return n, nil
}

// Close closes the capture file.
func (s *Replay) Close() error {
	return s.f.Close()
}
