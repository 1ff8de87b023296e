package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/blend/internal/config"
	"github.com/scigolib/blend/internal/diag"
)

func newTestContext(sdna *SDNA) *Context {
	return &Context{
		SDNA:   sdna,
		Limits: config.DefaultLimits(),
		Diag:   diag.NewCollector(nil),
	}
}

func TestRunInferenceMatbits(t *testing.T) {
	target := &BlockHeader{Code: "DATA", OldAddress: 0x100, Length: 16, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "Object"}
	mi := &MemberInstance{Name: "matbits", DeclaredType: "char", Spelling: "*matbits", Owner: owner}
	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "Object", MemberType: "char", Spelling: "*matbits", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})

	require.NoError(t, RunInference(ctx, idx, nil))
	require.NotNil(t, target.AdHocSpec)
	require.Equal(t, "matbits", target.AdHocSpec.TypeName)
	require.Equal(t, "uchar", target.AdHocSpec.Members[0].DeclaredType)
	require.Equal(t, "matbits[16]", target.AdHocSpec.Members[0].Spelling)
}

func TestRunInferenceCustomDataLayerPaintMask(t *testing.T) {
	target := &BlockHeader{Code: "DATA", OldAddress: 0x200, Length: 40, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "CustomDataLayer"}
	owner.Members = append(owner.Members, &MemberInstance{
		Name: "type", DeclaredType: "int", Owner: owner,
		Value: &Value{Kind: KindScalar, Scalar: int32(34)},
	})
	mi := &MemberInstance{Name: "data", DeclaredType: "void", Spelling: "*data", Owner: owner}

	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "CustomDataLayer", MemberType: "void", Spelling: "*data", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})

	require.NoError(t, RunInference(ctx, idx, nil))
	require.NotNil(t, target.AdHocSpec)
	require.Equal(t, "float", target.AdHocSpec.Members[0].DeclaredType)
	require.Equal(t, "paintMask[10]", target.AdHocSpec.Members[0].Spelling)
}

func TestRunInferenceCustomDataLayerWrongTypeUnresolved(t *testing.T) {
	target := &BlockHeader{Code: "DATA", OldAddress: 0x300, Length: 40, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "CustomDataLayer"}
	owner.Members = append(owner.Members, &MemberInstance{
		Name: "type", DeclaredType: "int", Owner: owner,
		Value: &Value{Kind: KindScalar, Scalar: int32(1)},
	})
	mi := &MemberInstance{Name: "data", DeclaredType: "void", Spelling: "*data", Owner: owner}

	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "CustomDataLayer", MemberType: "void", Spelling: "*data", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})

	require.NoError(t, RunInference(ctx, idx, nil))
	require.Nil(t, target.AdHocSpec)
	require.False(t, target.Processed)
}

func TestRunInferencePaintToolSlots(t *testing.T) {
	target := &BlockHeader{Code: "DATA", OldAddress: 0x500, Length: 24, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "Paint"}
	mi := &MemberInstance{Name: "tool_slots", DeclaredType: "PaintToolSlot", Spelling: "*tool_slots", Owner: owner}
	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "Paint", MemberType: "PaintToolSlot", Spelling: "*tool_slots", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})
	ctx.PointerSize = 8

	require.NoError(t, RunInference(ctx, idx, nil))
	require.NotNil(t, target.AdHocSpec)
	require.Equal(t, "PaintToolSlot", target.AdHocSpec.TypeName)
	require.Equal(t, "PaintToolSlot", target.AdHocSpec.Members[0].DeclaredType)
	require.Equal(t, "*tool_slots[3]", target.AdHocSpec.Members[0].Spelling)
}

func TestRunInferenceMaterialPointerArray(t *testing.T) {
	target := &BlockHeader{Code: "DATA", OldAddress: 0x600, Length: 8, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "Object"}
	mi := &MemberInstance{Name: "mat", DeclaredType: "Material", Spelling: "**mat", Owner: owner}
	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "Object", MemberType: "Material", Spelling: "**mat", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})
	ctx.PointerSize = 8

	require.NoError(t, RunInference(ctx, idx, nil))
	require.NotNil(t, target.AdHocSpec)
	require.Equal(t, "Material", target.AdHocSpec.TypeName)
	require.Equal(t, "**mat", target.AdHocSpec.Members[0].Spelling)
}

func TestRunInferenceConsoleLine(t *testing.T) {
	target := &BlockHeader{Code: "DATA", OldAddress: 0x700, Length: 12, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "ConsoleLine"}
	mi := &MemberInstance{Name: "line", DeclaredType: "char", Spelling: "*line", Owner: owner}
	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "ConsoleLine", MemberType: "char", Spelling: "*line", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})

	require.NoError(t, RunInference(ctx, idx, nil))
	require.NotNil(t, target.AdHocSpec)
	require.Equal(t, "line", target.AdHocSpec.TypeName)
	require.Equal(t, "char", target.AdHocSpec.Members[0].DeclaredType)
	require.Equal(t, "line[12]", target.AdHocSpec.Members[0].Spelling)
}

type fakeImageSink struct {
	calledName   string
	calledWidth  int
	calledHeight int
}

func (s *fakeImageSink) Decode(name string, width, height int, rgba []byte) (interface{}, error) {
	s.calledName = name
	s.calledWidth = width
	s.calledHeight = height
	return rgba, nil
}

func TestRunInferencePreviewImage(t *testing.T) {
	order := binary.LittleEndian
	rgba := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}

	target := &BlockHeader{Code: "DATA", OldAddress: 0x800, PayloadOffset: 0, BackRefs: newBackRefSet()}

	owner := &StructInstance{TypeName: "PreviewImage"}
	owner.Members = append(owner.Members,
		&MemberInstance{
			Name: "rect", DeclaredType: "int", Owner: owner,
			Value: &Value{Kind: KindArray, Array: []*Value{
				{Kind: KindPointer, Pointer: &Pointer{Addr: 0}},
				{Kind: KindPointer, Pointer: &Pointer{Addr: target.OldAddress}},
			}},
		},
		&MemberInstance{
			Name: "w", DeclaredType: "int", Owner: owner,
			Value: &Value{Kind: KindArray, Array: []*Value{
				{Kind: KindScalar, Scalar: int32(0)},
				{Kind: KindScalar, Scalar: int32(2)},
			}},
		},
		&MemberInstance{
			Name: "h", DeclaredType: "int", Owner: owner,
			Value: &Value{Kind: KindArray, Array: []*Value{
				{Kind: KindScalar, Scalar: int32(0)},
				{Kind: KindScalar, Scalar: int32(2)},
			}},
		},
	)
	mi := &MemberInstance{Name: "rect", DeclaredType: "int", Spelling: "*rect[2]", Owner: owner}

	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "PreviewImage", MemberType: "int", Spelling: "*rect[2]", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(&SDNA{})
	ctx.R = bytes.NewReader(rgba)
	ctx.Order = order
	ctx.PointerSize = 8

	sink := &fakeImageSink{}
	require.NoError(t, RunInference(ctx, idx, sink))

	require.True(t, target.Processed)
	require.Len(t, target.Instances, 1)
	require.Equal(t, "PreviewImageRect", target.Instances[0].TypeName)
	require.Equal(t, int32(2), target.Instances[0].Member("width").Value.Scalar)
	require.Equal(t, int32(2), target.Instances[0].Member("height").Value.Scalar)

	require.Equal(t, 2, sink.calledWidth)
	require.Equal(t, 2, sink.calledHeight)
	require.Equal(t, "0x800", sink.calledName)
}

func TestRunInferenceBNodeSocketRewritesStructIndex(t *testing.T) {
	sdna := &SDNA{
		Structs: []StructDef{
			{},
			{TypeName: "bNodeSocketValueFloat", TypeIndex: 5},
		},
		posByStructName: map[string]int{"bNodeSocketValueFloat": 1},
	}
	target := &BlockHeader{Code: "DATA", OldAddress: 0x400, Length: 4, BackRefs: newBackRefSet()}
	owner := &StructInstance{TypeName: "bNodeSocket"}
	owner.Members = append(owner.Members, &MemberInstance{
		Name: "type", DeclaredType: "int", Owner: owner,
		Value: &Value{Kind: KindScalar, Scalar: int32(0)},
	})
	mi := &MemberInstance{Name: "default_value", DeclaredType: "void", Spelling: "*default_value", Owner: owner}

	target.BackRefs.Add(&BlockHeader{OldAddress: 0x1}, BackRefEntry{
		OwnerStructName: "bNodeSocket", MemberType: "void", Spelling: "*default_value", From: owner, Member: mi,
	})

	idx := &BlockIndex{Order: []*BlockHeader{target}}
	ctx := newTestContext(sdna)

	require.NoError(t, RunInference(ctx, idx, nil))
	require.Equal(t, 1, target.SDNAIndex)
	require.Nil(t, target.AdHocSpec)
}
