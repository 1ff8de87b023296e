package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/blend/internal/config"
	"github.com/scigolib/blend/internal/diag"
)

// buildPointerFixtureSDNA describes two structs: Object{Scene *scene;} at
// struct-table position 1, and Scene{int id;} at position 2. Position 0 is
// an empty placeholder, since struct index 0 marks a block with no
// structured layout.
func buildPointerFixtureSDNA() *SDNA {
	return &SDNA{
		Names:       []string{"*scene", "id"},
		Types:       []string{"int", "Scene", "Object"},
		TypeLengths: []int{4, 4, 8},
		Structs: []StructDef{
			{},
			{TypeIndex: 2, TypeName: "Object", Fields: []StructField{{TypeIndex: 1, NameIndex: 0}}},
			{TypeIndex: 1, TypeName: "Scene", Fields: []StructField{{TypeIndex: 0, NameIndex: 1}}},
		},
	}
}

func TestMaterializeBlockPointerFixup(t *testing.T) {
	sdna := buildPointerFixtureSDNA()
	sdna.byTypeName = map[string]*StructDef{
		"Object": &sdna.Structs[1],
		"Scene":  &sdna.Structs[2],
	}

	order := binary.LittleEndian

	blockA := &BlockHeader{Code: "OB", OldAddress: 0x1000, SDNAIndex: 1, Count: 1, Length: 8, BackRefs: newBackRefSet()}
	blockB := &BlockHeader{Code: "SC", OldAddress: 0x2000, SDNAIndex: 2, Count: 1, Length: 4, BackRefs: newBackRefSet()}

	// Payload layout: block A's 8-byte pointer at offset 0, block B's 4-byte
	// int at offset 8.
	var payload bytes.Buffer
	require.NoError(t, binary.Write(&payload, order, uint64(0x2000)))
	require.NoError(t, binary.Write(&payload, order, int32(42)))

	blockA.PayloadOffset = 0
	blockB.PayloadOffset = 8

	index := &BlockIndex{
		Order:  []*BlockHeader{blockA, blockB},
		ByCode: map[string][]*BlockHeader{"OB": {blockA}, "SC": {blockB}},
		ByAddr: map[uint64]*BlockHeader{0x1000: blockA, 0x2000: blockB},
	}

	ctx := &Context{
		R:           bytes.NewReader(payload.Bytes()),
		Order:       order,
		PointerSize: 8,
		SDNA:        sdna,
		Index:       index,
		Limits:      config.DefaultLimits(),
		Diag:        diag.NewCollector(nil),
	}

	require.NoError(t, MaterializeBlock(ctx, blockA))
	require.NoError(t, MaterializeBlock(ctx, blockB))

	require.True(t, blockA.Processed)
	require.Len(t, blockA.Instances, 1)
	scenePtr := blockA.Instances[0].Member("scene")
	require.NotNil(t, scenePtr)
	require.Equal(t, KindPointer, scenePtr.Value.Kind)
	require.Equal(t, uint64(0x2000), scenePtr.Value.Pointer.Addr)
	require.Same(t, blockB, scenePtr.Value.Pointer.Target)

	require.Equal(t, []string{"Object|Scene *scene"}, blockB.BackRefs.QuickRefs)
	require.Equal(t, 1, blockB.BackRefs.Count())
	require.Len(t, blockB.BackRefs.Refs, 1)
	require.Same(t, blockA, blockB.BackRefs.Refs[0].From.Block)
}
