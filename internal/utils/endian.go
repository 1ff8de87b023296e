// Package utils provides small, dependency-free helpers shared across the
// blend decoder: buffer pooling, host-endian-aware primitive reads, and
// contextual error wrapping.
package utils

import (
	"encoding/binary"
	"io"
)

// ReadExact fills buf completely from r, treating a short read as the
// caller's problem to classify (truncated header vs. end of block scan).
func ReadExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// ReadUint16 reads a 16-bit unsigned value in the given byte order.
func ReadUint16(r io.Reader, order binary.ByteOrder) (uint16, error) {
	buf := GetBuffer(2)
	defer ReleaseBuffer(buf)
	if err := ReadExact(r, buf); err != nil {
		return 0, err
	}
	return order.Uint16(buf), nil
}

// ReadUint32 reads a 32-bit unsigned value in the given byte order.
func ReadUint32(r io.Reader, order binary.ByteOrder) (uint32, error) {
	buf := GetBuffer(4)
	defer ReleaseBuffer(buf)
	if err := ReadExact(r, buf); err != nil {
		return 0, err
	}
	return order.Uint32(buf), nil
}

// ReadUint64 reads a 64-bit unsigned value in the given byte order.
func ReadUint64(r io.Reader, order binary.ByteOrder) (uint64, error) {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)
	if err := ReadExact(r, buf); err != nil {
		return 0, err
	}
	return order.Uint64(buf), nil
}

// ReadPointer reads a pointer-width (4 or 8 byte) unsigned address, widened
// to uint64 regardless of the file's native pointer width.
func ReadPointer(r io.Reader, order binary.ByteOrder, pointerSize uint8) (uint64, error) {
	if pointerSize == 4 {
		v, err := ReadUint32(r, order)
		return uint64(v), err
	}
	return ReadUint64(r, order)
}

// HostIsBigEndian reports the byte order of the running process, used to
// reject .blend files whose endianness does not match the host.
func HostIsBigEndian() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 0
}
