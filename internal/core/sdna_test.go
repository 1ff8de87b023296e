package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSDNAPayload assembles a minimal DNA1 payload describing two structs
// ("Object" with a single "int id" member, and the legacy-renamed,
// memberless "bScreen"), using the fixed sub-block layout the format
// specifies.
func buildSDNAPayload(t *testing.T) []byte {
	t.Helper()
	order := binary.LittleEndian
	var buf []byte

	appendStr := func(s string) {
		buf = append(buf, []byte(s)...)
	}
	appendU32 := func(v uint32) {
		var b [4]byte
		order.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	appendU16 := func(v uint16) {
		var b [2]byte
		order.PutUint16(b[:], v)
		buf = append(buf, b[:]...)
	}
	align4 := func() {
		for len(buf)%4 != 0 {
			buf = append(buf, 0)
		}
	}

	appendStr("SDNA")

	names := []string{"id"}
	appendStr("NAME")
	appendU32(uint32(len(names)))
	for _, n := range names {
		appendStr(n)
		buf = append(buf, 0)
	}
	align4()

	types := []string{"int", "Object", "bScreen"}
	appendStr("TYPE")
	appendU32(uint32(len(types)))
	for _, tn := range types {
		appendStr(tn)
		buf = append(buf, 0)
	}
	align4()

	appendStr("TLEN")
	lengths := map[string]uint16{"int": 4, "Object": 4, "bScreen": 0}
	for _, tn := range types {
		appendU16(lengths[tn])
	}
	align4()

	appendStr("STRC")
	appendU32(2)

	// struct 0: Object { int id; }
	appendU16(1) // type index of "Object"
	appendU16(1) // one field
	appendU16(0) // field type index -> "int"
	appendU16(0) // field name index -> "id"

	// struct 1: bScreen (renamed to "Screen"), no fields
	appendU16(2) // type index of "bScreen"
	appendU16(0)

	return buf
}

func TestDecodeSDNA(t *testing.T) {
	payload := buildSDNAPayload(t)
	sdna, err := DecodeSDNA(payload, binary.LittleEndian)
	require.NoError(t, err)

	require.Equal(t, []string{"id"}, sdna.Names)
	require.Equal(t, []string{"int", "Object", "Screen"}, sdna.Types)
	require.Equal(t, []int{4, 4, 0}, sdna.TypeLengths)
	require.Len(t, sdna.Structs, 2)

	obj := sdna.StructByName("Object")
	require.NotNil(t, obj)
	require.Len(t, obj.Fields, 1)

	screen := sdna.StructByName("Screen")
	require.NotNil(t, screen)
	require.Nil(t, sdna.StructByName("bScreen"))
}

func TestDecodeSDNABadTag(t *testing.T) {
	_, err := DecodeSDNA([]byte("NOPE"), binary.LittleEndian)
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindBadSdnaTag, fe.Kind)
}
