package blend

import "github.com/scigolib/blend/internal/core"

// Block is the public, read-only view of one data block: its header fields
// plus the typed instances the materializer produced for it, if any.
type Block struct {
	h *core.BlockHeader
}

// Code is the 4-character (or shorter) block-type code.
func (b Block) Code() string { return b.h.Code }

// Length is the payload length in bytes, as declared by the file.
func (b Block) Length() int64 { return b.h.Length }

// OldAddress is the persisted pointer value that identified this block in
// the writer's address space.
func (b Block) OldAddress() uint64 { return b.h.OldAddress }

// Count is the number of structure repetitions the block declares.
func (b Block) Count() int { return b.h.Count }

// Processed reports whether the materializer (first or second pass)
// produced typed instances for this block.
func (b Block) Processed() bool { return b.h.Processed }

// Instances returns the decoded structure instances, or nil for a block
// that remains unprocessed.
func (b Block) Instances() []*core.StructInstance { return b.h.Instances }

// BackRefQuickRefs returns the deduplicated quick-ref triples recorded
// against this block by every pointer elsewhere in the file that resolves
// to it.
func (b Block) BackRefQuickRefs() []string {
	if b.h.BackRefs == nil {
		return nil
	}
	return b.h.BackRefs.QuickRefs
}

// BackRefCount returns the number of referring member-instance handles
// recorded against this block.
func (b Block) BackRefCount() int {
	if b.h.BackRefs == nil {
		return 0
	}
	return b.h.BackRefs.Count()
}
