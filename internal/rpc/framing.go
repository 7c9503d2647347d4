package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// lastFragmentBit marks the final fragment of a record-marked RPC message
// (RFC 5531 Section 11).
const lastFragmentBit = 0x80000000

// MaxFragmentSize bounds a single TCP record-marking fragment. VXI-11 core
// channel traffic (waveform reads) can be large, so this is generous
// relative to NFS-style RPC programs.
const MaxFragmentSize = 16 * 1024 * 1024

// AddRecordMark prepends a 4-byte record-marking fragment header to msg,
// marking it as the last (and only) fragment of the record.
func AddRecordMark(msg []byte) []byte {
	header := uint32(len(msg)) | lastFragmentBit
	out := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(out[0:4], header)
	copy(out[4:], msg)
	return out
}

// ReadRecord reads one complete RPC record from r, reassembling fragments
// until the last-fragment bit is set. Used for TCP transports only; UDP
// datagrams are not record-marked and carry one message per packet.
func ReadRecord(r io.Reader) ([]byte, error) {
	var whole []byte
	for {
		var headerBuf [4]byte
		if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
			return nil, fmt.Errorf("rpc: read fragment header: %w", err)
		}
		header := binary.BigEndian.Uint32(headerBuf[:])
		length := header &^ lastFragmentBit
		last := header&lastFragmentBit != 0

		if length > MaxFragmentSize {
			return nil, fmt.Errorf("rpc: fragment length %d exceeds maximum %d", length, MaxFragmentSize)
		}

		frag := make([]byte, length)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, fmt.Errorf("rpc: read fragment body: %w", err)
		}
		whole = append(whole, frag...)

		if last {
			return whole, nil
		}
	}
}
