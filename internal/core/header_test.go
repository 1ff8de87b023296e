package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/blend/internal/utils"
)

func buildFileHeaderBytes(pointerCode, endianCode byte, version string) []byte {
	buf := []byte("BLENDER")
	buf = append(buf, pointerCode, endianCode)
	buf = append(buf, []byte(version)...)
	return buf
}

func TestReadFileHeaderValid(t *testing.T) {
	hostBig := utils.HostIsBigEndian()
	endianCode := byte('v')
	if hostBig {
		endianCode = 'V'
	}

	data := buildFileHeaderBytes('-', endianCode, "300")
	h, err := ReadFileHeader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, uint8(8), h.PointerSize)
	require.Equal(t, hostBig, h.BigEndian)
	require.Equal(t, 300, h.Version)
}

func TestReadFileHeaderBadMagic(t *testing.T) {
	data := []byte("NOTBLEND-v300")
	_, err := ReadFileHeader(bytes.NewReader(data))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindBadMagic, fe.Kind)
}

func TestReadFileHeaderBadPointerSizeCode(t *testing.T) {
	data := buildFileHeaderBytes('?', 'v', "280")
	_, err := ReadFileHeader(bytes.NewReader(data))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindBadPointerSizeCode, fe.Kind)
}

func TestReadFileHeaderCrossEndianRejected(t *testing.T) {
	hostBig := utils.HostIsBigEndian()
	wrongCode := byte('V')
	if hostBig {
		wrongCode = 'v'
	}
	data := buildFileHeaderBytes('-', wrongCode, "300")
	_, err := ReadFileHeader(bytes.NewReader(data))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindHostEndianMismatch, fe.Kind)
}

func TestReadFileHeaderBadVersion(t *testing.T) {
	hostBig := utils.HostIsBigEndian()
	endianCode := byte('v')
	if hostBig {
		endianCode = 'V'
	}
	data := buildFileHeaderBytes('-', endianCode, "2X0")
	_, err := ReadFileHeader(bytes.NewReader(data))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindBadVersion, fe.Kind)
}

func TestReadFileHeaderTruncated(t *testing.T) {
	_, err := ReadFileHeader(bytes.NewReader([]byte("BLEN")))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindTruncated, fe.Kind)
}

func TestReadFileHeaderIdempotent(t *testing.T) {
	hostBig := utils.HostIsBigEndian()
	endianCode := byte('v')
	if hostBig {
		endianCode = 'V'
	}
	data := buildFileHeaderBytes('_', endianCode, "279")

	h1, err := ReadFileHeader(bytes.NewReader(data))
	require.NoError(t, err)
	h2, err := ReadFileHeader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}
