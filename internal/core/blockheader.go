package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/blend/internal/config"
	"github.com/scigolib/blend/internal/diag"
	"github.com/scigolib/blend/internal/utils"
)

// endBlockCode marks the final block of a .blend file; its payload is empty.
const endBlockCode = "ENDB"

// sdnaBlockCode names the single block whose payload is the Structure DNA
// rather than a repetition of some other struct.
const sdnaBlockCode = "DNA1"

// BlockHeader describes one data block: its fixed header fields plus
// everything later passes attach to it (decoded instances, back-references,
// and, for blocks with no SDNA layout, a synthesized ad-hoc one).
type BlockHeader struct {
	Code       string
	Length     int64
	OldAddress uint64
	SDNAIndex  int
	Count      int

	// PayloadOffset is the byte offset of this block's payload within the
	// stream the scanner read from.
	PayloadOffset int64

	// Processed is set once the materializer has produced Instances for
	// this block, whether from an SDNA layout or a synthesized AdHocSpec.
	Processed bool

	Instances []*StructInstance

	// BackRefs indexes every pointer, anywhere in the file, that resolves
	// to this block's OldAddress.
	BackRefs *BackRefSet

	// AdHocSpec is set by the heuristic inferencer for blocks whose SDNA
	// struct index does not describe their true payload layout (void* or
	// otherwise polymorphic members). When set, the second materialization
	// pass consumes it in place of the SDNA struct definition.
	AdHocSpec *AdHocSpec
}

// BlockIndex is the complete, ordered and address-keyed catalogue of a
// file's blocks.
type BlockIndex struct {
	Order  []*BlockHeader
	ByCode map[string][]*BlockHeader
	ByAddr map[uint64]*BlockHeader
}

func newBlockIndex() *BlockIndex {
	return &BlockIndex{
		ByCode: make(map[string][]*BlockHeader),
		ByAddr: make(map[uint64]*BlockHeader),
	}
}

func (idx *BlockIndex) add(b *BlockHeader) {
	idx.Order = append(idx.Order, b)
	idx.ByCode[b.Code] = append(idx.ByCode[b.Code], b)
	if b.OldAddress != 0 {
		idx.ByAddr[b.OldAddress] = b
	}
}

// blockHeaderSize is the fixed on-disk size of a block header: a 4-byte
// code, an int32 length, a pointer-width old address, an int32 SDNA struct
// index, and an int32 count.
func blockHeaderSize(pointerSize uint8) int64 {
	return 4 + 4 + int64(pointerSize) + 4 + 4
}

// ScanBlocks reads every block header from r in sequence, skipping each
// payload (except DNA1, which is decoded immediately since every later pass
// depends on it), until it reaches ENDB or runs out of input. A short read
// anywhere in a block header is treated as if the file had ended cleanly
// there, matching readers that tolerate a missing or truncated ENDB sentinel.
func ScanBlocks(r io.ReadSeeker, order binary.ByteOrder, pointerSize uint8, limits config.Limits, dc *diag.Collector) (*BlockIndex, *SDNA, error) {
	idx := newBlockIndex()
	var sdna *SDNA

	hdrSize := blockHeaderSize(pointerSize)

	for {
		if len(idx.Order) >= limits.MaxBlocks {
			dc.Warn(diag.UnknownStructIndex, "", 0, "block scan stopped at MaxBlocks limit (%d)", limits.MaxBlocks)
			break
		}

		start, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, nil, fail(KindTruncated, "block header offset", err)
		}

		codeBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, codeBuf); err != nil {
			if utils.IsTruncated(err) {
				break
			}
			return nil, nil, fail(KindTruncated, "block code", err)
		}
		code := trimBlockCode(codeBuf)

		length, err := utils.ReadUint32(r, order)
		if err != nil {
			if utils.IsTruncated(err) {
				break
			}
			return nil, nil, fail(KindTruncated, fmt.Sprintf("block %q length", code), err)
		}

		oldAddr, err := utils.ReadPointer(r, order, pointerSize)
		if err != nil {
			if utils.IsTruncated(err) {
				break
			}
			return nil, nil, fail(KindTruncated, fmt.Sprintf("block %q old address", code), err)
		}

		sdnaIndex, err := utils.ReadUint32(r, order)
		if err != nil {
			if utils.IsTruncated(err) {
				break
			}
			return nil, nil, fail(KindTruncated, fmt.Sprintf("block %q sdna index", code), err)
		}

		count, err := utils.ReadUint32(r, order)
		if err != nil {
			if utils.IsTruncated(err) {
				break
			}
			return nil, nil, fail(KindTruncated, fmt.Sprintf("block %q count", code), err)
		}

		payloadOffset := start + hdrSize

		b := &BlockHeader{
			Code:          code,
			Length:        int64(length),
			OldAddress:    oldAddr,
			SDNAIndex:     int(int32(sdnaIndex)),
			Count:         int(count),
			PayloadOffset: payloadOffset,
			BackRefs:      newBackRefSet(),
		}

		if code == sdnaBlockCode {
			payload := make([]byte, length)
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, nil, fail(KindTruncated, "dna1 payload", err)
			}
			sdna, err = DecodeSDNA(payload, order)
			if err != nil {
				return nil, nil, err
			}
			b.Processed = true
			idx.add(b)
			continue
		}

		if code == endBlockCode {
			break
		}

		idx.add(b)

		if _, err := r.Seek(payloadOffset+int64(length), io.SeekStart); err != nil {
			return nil, nil, fail(KindTruncated, fmt.Sprintf("block %q payload seek", code), err)
		}
	}

	return idx, sdna, nil
}

// trimBlockCode strips the NUL padding .blend uses for block codes shorter
// than 4 bytes.
func trimBlockCode(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}
