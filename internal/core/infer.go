package core

import (
	"fmt"
	"io"

	"github.com/scigolib/blend/internal/diag"
	"github.com/scigolib/blend/internal/utils"
)

// AdHocMember is one synthesized (declared type, spelling) pair, re-parsed
// through the same name grammar real SDNA members use so the materializer
// needs no special-casing to consume it.
type AdHocMember struct {
	DeclaredType string
	Spelling     string
}

// AdHocSpec is a layout the heuristic inferencer synthesizes for a block
// the SDNA does not describe directly. The second materialization pass
// consumes it exactly as it would an SDNA struct definition.
type AdHocSpec struct {
	TypeName string
	Members  []AdHocMember
}

// ImageSink is the external collaborator the PreviewImage inference rule
// delegates RGBA decoding to.
type ImageSink interface {
	Decode(name string, width, height int, rgba []byte) (interface{}, error)
}

// socketValueStructs maps a bNodeSocket's discriminator "type" field to the
// SDNA struct that actually describes its default_value payload. Types 3
// (shader) and 5 (deprecated mesh) are intentionally absent: the rule
// leaves those blocks unresolved.
var socketValueStructs = map[int64]string{
	0: "bNodeSocketValueFloat",
	1: "bNodeSocketValueVector",
	2: "bNodeSocketValueRGBA",
	4: "bNodeSocketValueBoolean",
	6: "bNodeSocketValueInt",
	7: "bNodeSocketValueString",
}

// RunInference applies the second-pass heuristics of the format to every
// block the first materialization pass left unprocessed. sink may be nil;
// when nil, the PreviewImage rule records a diagnostic and decodes no image,
// but still attaches its descriptor and marks the block processed.
func RunInference(ctx *Context, idx *BlockIndex, sink ImageSink) error {
	for _, b := range idx.Order {
		if b.Processed || b.BackRefs == nil || len(b.BackRefs.Refs) == 0 {
			continue
		}
		if err := inferBlock(ctx, b, sink); err != nil {
			return err
		}
	}
	return nil
}

func inferBlock(ctx *Context, b *BlockHeader, sink ImageSink) error {
	pointerWidth := int64(ctx.PointerSize)
	length := b.Length

	for _, ref := range b.BackRefs.Refs {
		switch ref.QuickRef() {
		case "Paint|PaintToolSlot *tool_slots":
			b.AdHocSpec = &AdHocSpec{
				TypeName: "PaintToolSlot",
				Members:  []AdHocMember{{DeclaredType: "PaintToolSlot", Spelling: fmt.Sprintf("*tool_slots[%d]", length/pointerWidth)}},
			}
			return nil

		case "Object|Material **mat", "Mesh|Material **mat":
			if length == pointerWidth {
				b.AdHocSpec = &AdHocSpec{
					TypeName: "Material",
					Members:  []AdHocMember{{DeclaredType: "Material", Spelling: "**mat"}},
				}
				return nil
			}

		case "Object|char *matbits":
			b.AdHocSpec = &AdHocSpec{
				TypeName: "matbits",
				Members:  []AdHocMember{{DeclaredType: "uchar", Spelling: fmt.Sprintf("matbits[%d]", length)}},
			}
			return nil

		case "ConsoleLine|char *line":
			b.AdHocSpec = &AdHocSpec{
				TypeName: "line",
				Members:  []AdHocMember{{DeclaredType: "char", Spelling: fmt.Sprintf("line[%d]", length)}},
			}
			return nil

		case "CustomDataLayer|void *data":
			if owner := ref.From; owner != nil {
				if typeMember := owner.Member("type"); typeMember != nil {
					if n, ok := typeMember.Value.AsInt(); ok && n == 34 {
						b.AdHocSpec = &AdHocSpec{
							TypeName: "paintMask",
							Members:  []AdHocMember{{DeclaredType: "float", Spelling: fmt.Sprintf("paintMask[%d]", length/4)}},
						}
						return nil
					}
				}
			}

		case "IDPropertyData|void *pointer":
			if owner := ref.From; owner != nil {
				typeM := owner.Member("type")
				subtypeM := owner.Member("subtype")
				if typeM == nil || subtypeM == nil {
					continue
				}
				typeN, okT := typeM.Value.AsInt()
				subtypeN, okS := subtypeM.Value.AsInt()
				if okT && okS && typeN == 0 && subtypeN == 0 {
					b.AdHocSpec = &AdHocSpec{
						TypeName: "stringData",
						Members:  []AdHocMember{{DeclaredType: "char", Spelling: fmt.Sprintf("stringData[%d]", length)}},
					}
					return nil
				}
			}

		case "PreviewImage|int *rect[2]":
			if err := inferPreviewImage(ctx, b, ref, sink); err != nil {
				return err
			}
			if b.Processed {
				return nil
			}

		case "bNodeSocket|void *default_value":
			if owner := ref.From; owner != nil {
				if typeM := owner.Member("type"); typeM != nil {
					if n, ok := typeM.Value.AsInt(); ok {
						if structName, known := socketValueStructs[n]; known {
							if pos, ok := ctx.SDNA.StructIndexByName(structName); ok {
								b.SDNAIndex = pos
								return nil
							}
						}
					}
				}
			}
		}
	}

	ctx.Diag.Warn(diag.HeuristicUnresolved, b.Code, b.OldAddress, "no inference rule matched this block's back-references")
	return nil
}

// inferPreviewImage implements the PreviewImage rule: the referring
// PreviewImage struct carries parallel w[2]/h[2]/rect[2] arrays; this block
// is whichever rect slot's pointer resolves to its own old address. It
// decodes the RGBA payload through the image sink and attaches a synthesized
// descriptor in place of the usual SDNA layout, then marks the block
// processed directly (it never goes through the ordinary second pass).
func inferPreviewImage(ctx *Context, b *BlockHeader, ref BackRefEntry, sink ImageSink) error {
	owner := ref.From
	if owner == nil {
		return nil
	}
	rectMember := owner.Member("rect")
	wMember := owner.Member("w")
	hMember := owner.Member("h")
	if rectMember == nil || wMember == nil || hMember == nil || rectMember.Value == nil {
		return nil
	}

	slot := -1
	for i, elem := range rectMember.Value.Array {
		if elem == nil || elem.Kind != KindPointer || elem.Pointer == nil {
			continue
		}
		if elem.Pointer.Addr == b.OldAddress {
			slot = i
			break
		}
	}
	if slot < 0 || slot >= len(wMember.Value.Array) || slot >= len(hMember.Value.Array) {
		return nil
	}

	w, okW := wMember.Value.Array[slot].AsInt()
	h, okH := hMember.Value.Array[slot].AsInt()
	if !okW || !okH {
		return nil
	}

	if _, err := ctx.R.Seek(b.PayloadOffset, io.SeekStart); err != nil {
		return utils.WrapError("seek to PreviewImage rect payload", err)
	}
	rgba := make([]byte, int(w)*int(h)*4)
	if err := utils.ReadExact(ctx.R, rgba); err != nil {
		return utils.WrapError("read PreviewImage rect payload", err)
	}

	name := fmt.Sprintf("0x%x", b.OldAddress)

	if sink != nil {
		if _, err := sink.Decode(name, int(w), int(h), rgba); err != nil {
			return utils.WrapError(fmt.Sprintf("decode PreviewImage rect %s", name), err)
		}
	} else {
		ctx.Diag.Warn(diag.HeuristicUnresolved, b.Code, b.OldAddress, "PreviewImage rule matched but no image sink was configured")
	}

	descriptor := &StructInstance{
		TypeName: "PreviewImageRect",
		Block:    b,
		Members: []*MemberInstance{
			{Name: "width", DeclaredType: "int", Value: &Value{Kind: KindScalar, Scalar: int32(w)}},
			{Name: "height", DeclaredType: "int", Value: &Value{Kind: KindScalar, Scalar: int32(h)}},
			{Name: "name", DeclaredType: "char", Value: &Value{Kind: KindString, Str: name, Utf8Valid: true}},
		},
	}
	b.Instances = []*StructInstance{descriptor}
	b.Processed = true
	return nil
}
