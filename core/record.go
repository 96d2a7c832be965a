package core

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// On-disk frame layout, all fields little-endian:
//
//	[length: uint32][checksum: uint32][payload: length bytes]
//
// The checksum is CRC-32 (IEEE) over the four length bytes followed by the
// payload, so a torn write that clips the length field fails validation the
// same way a bit-rotted payload does.
const (
	// FrameOverhead is the number of framing bytes added to every payload.
	FrameOverhead = 8

	// MaxRecordSize is the maximum payload size of a single record.
	MaxRecordSize = 1 << 24 // 16 MiB
)

// frameChecksum computes the CRC over the length prefix and the payload.
func frameChecksum(lengthField []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crc32.IEEETable, lengthField)
	return crc32.Update(crc, crc32.IEEETable, payload)
}

// EncodedFrameSize returns the full on-disk size of a frame for a payload of
// the given length.
func EncodedFrameSize(payloadLen int) uint64 {
	return uint64(payloadLen) + FrameOverhead
}

// EncodeFrame serializes a payload into a self-describing, checksummed frame.
// The payload may be empty. Payloads larger than MaxRecordSize fail with
// ErrPayloadTooLarge before any allocation proportional to the input.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxRecordSize)
	}
	buf := make([]byte, FrameOverhead+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[FrameOverhead:], payload)
	binary.LittleEndian.PutUint32(buf[4:8], frameChecksum(buf[0:4], payload))
	return buf, nil
}

// DecodeFrame validates the frame at the start of b and returns its payload
// and the number of bytes the frame occupies. The returned payload aliases b.
//
// ErrFrameIncomplete means b ends before the declared frame does (the torn
// tail case during recovery). ErrFrameCorrupt means the frame is fully
// present but fails validation.
func DecodeFrame(b []byte) (payload []byte, consumed uint64, err error) {
	if len(b) < FrameOverhead {
		return nil, 0, fmt.Errorf("%w: %d bytes, want at least %d", ErrFrameIncomplete, len(b), FrameOverhead)
	}
	length := binary.LittleEndian.Uint32(b[0:4])
	if length > MaxRecordSize {
		return nil, 0, fmt.Errorf("%w: declared length %d exceeds limit %d", ErrFrameCorrupt, length, MaxRecordSize)
	}
	total := EncodedFrameSize(int(length))
	if uint64(len(b)) < total {
		return nil, 0, fmt.Errorf("%w: %d of %d bytes", ErrFrameIncomplete, len(b), total)
	}
	payload = b[FrameOverhead:total]
	want := binary.LittleEndian.Uint32(b[4:8])
	if got := frameChecksum(b[0:4], payload); got != want {
		return nil, 0, fmt.Errorf("%w: got %#x, want %#x", ErrFrameCorrupt, got, want)
	}
	return payload, total, nil
}
