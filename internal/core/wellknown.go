package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/blend/internal/utils"
)

// Well-known block codes the root package dispatches on directly.
const (
	TestBlockCode = "TEST"
	RendBlockCode = "REND"
)

// RenderInfo is one entry of the abbreviated render-info block: a frame
// range and the scene it belongs to.
type RenderInfo struct {
	StartFrame int32
	EndFrame   int32
	SceneName  string
}

// HandleTest decodes a TEST block's thumbnail payload: two int32 dimensions
// followed by L-8 bytes of RGBA, and hands the pixels to sink. It marks the
// block processed whether or not a sink is configured, since the format
// treats image decoding as an external concern the reader does not retry.
func HandleTest(r io.ReadSeeker, order binary.ByteOrder, b *BlockHeader, sink ImageSink) (interface{}, error) {
	if _, err := r.Seek(b.PayloadOffset, io.SeekStart); err != nil {
		return nil, utils.WrapError("seek to TEST payload", err)
	}
	w, err := utils.ReadUint32(r, order)
	if err != nil {
		return nil, utils.WrapError("read TEST width", err)
	}
	h, err := utils.ReadUint32(r, order)
	if err != nil {
		return nil, utils.WrapError("read TEST height", err)
	}
	rgbaLen := b.Length - 8
	rgba := make([]byte, rgbaLen)
	if err := utils.ReadExact(r, rgba); err != nil {
		return nil, utils.WrapError("read TEST rgba payload", err)
	}
	b.Processed = true

	if sink == nil {
		return nil, nil
	}
	return sink.Decode("thumbnail", int(int32(w)), int(int32(h)), rgba)
}

// HandleRend decodes a REND block: Count repetitions of a frame range plus
// a 64-byte NUL-trimmed ASCII scene name.
func HandleRend(r io.ReadSeeker, order binary.ByteOrder, b *BlockHeader) ([]RenderInfo, error) {
	if _, err := r.Seek(b.PayloadOffset, io.SeekStart); err != nil {
		return nil, utils.WrapError("seek to REND payload", err)
	}
	out := make([]RenderInfo, 0, b.Count)
	for i := 0; i < b.Count; i++ {
		start, err := utils.ReadUint32(r, order)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("read REND start frame %d", i), err)
		}
		end, err := utils.ReadUint32(r, order)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("read REND end frame %d", i), err)
		}
		name := make([]byte, 64)
		if err := utils.ReadExact(r, name); err != nil {
			return nil, utils.WrapError(fmt.Sprintf("read REND scene name %d", i), err)
		}
		nul := len(name)
		for j, c := range name {
			if c == 0 {
				nul = j
				break
			}
		}
		out = append(out, RenderInfo{
			StartFrame: int32(start),
			EndFrame:   int32(end),
			SceneName:  string(name[:nul]),
		})
	}
	b.Processed = true
	return out, nil
}
