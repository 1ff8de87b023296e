package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// legacyRenames maps struct names that appear in older .blend files to the
// name the same struct is known by in current Blender releases. They apply
// only to the Types table; member spellings and block codes are unaffected.
var legacyRenames = map[string]string{
	"bScreen":         "Screen",
	"Collection":      "Group",
	"CollectionObject": "GroupObject",
}

// StructField is one undecoded (type index, name index) pair as declared in
// an STRC sub-block, before member spellings are parsed.
type StructField struct {
	TypeIndex int
	NameIndex int
}

// StructDef is one struct layout as declared by the STRC sub-block: a type
// name (already resolved through legacyRenames) and its ordered fields.
type StructDef struct {
	TypeIndex int
	TypeName  string
	Fields    []StructField
}

// SDNA is the fully decoded Structure DNA embedded in a .blend file: every
// name and type string it declares, each type's byte length, and every
// struct's field layout.
type SDNA struct {
	Names       []string
	Types       []string
	TypeLengths []int
	Structs     []StructDef

	byTypeName     map[string]*StructDef
	posByStructName map[string]int
}

// StructByIndex returns the struct definition at position structIndex in
// the Structs table — the same index a block header's SDNA struct index
// names — or nil if out of range. This is a position in the Structs
// table, not a Types-table index.
func (s *SDNA) StructByIndex(structIndex int) *StructDef {
	if s == nil || structIndex < 0 || structIndex >= len(s.Structs) {
		return nil
	}
	return &s.Structs[structIndex]
}

// StructByName returns the struct definition matching typeName (after
// legacy-rename resolution), or nil.
func (s *SDNA) StructByName(typeName string) *StructDef {
	if s == nil {
		return nil
	}
	return s.byTypeName[typeName]
}

// StructIndexByName returns the Structs-table position of typeName, for
// rewriting a block's SDNA struct index (e.g. the bNodeSocket inference
// rule). The second value is false if no struct by that name exists.
func (s *SDNA) StructIndexByName(typeName string) (int, bool) {
	if s == nil {
		return 0, false
	}
	idx, ok := s.posByStructName[typeName]
	return idx, ok
}

// TypeNameAt returns the Types-table string at index, or "" if out of
// range.
func (s *SDNA) TypeNameAt(index int) string {
	if s == nil || index < 0 || index >= len(s.Types) {
		return ""
	}
	return s.Types[index]
}

// readTag reads the next 4-byte tag, which is expected to equal want.
func readTag(data []byte, offset int, want string) (int, error) {
	if offset+4 > len(data) {
		return 0, fmt.Errorf("truncated before %q tag", want)
	}
	got := string(data[offset : offset+4])
	if got != want {
		return 0, fmt.Errorf("expected %q tag, got %q", want, got)
	}
	return offset + 4, nil
}

func readInt32(data []byte, offset int, order binary.ByteOrder) (int, int, error) {
	if offset+4 > len(data) {
		return 0, 0, fmt.Errorf("truncated reading int32 at offset %d", offset)
	}
	return int(order.Uint32(data[offset : offset+4])), offset + 4, nil
}

func align4(offset int) int {
	if rem := offset % 4; rem != 0 {
		return offset + (4 - rem)
	}
	return offset
}

// DecodeSDNA parses a DNA1 block's payload: the "SDNA" tag, then NAME, TYPE,
// TLEN, and STRC sub-blocks in that fixed order, each realigned to a 4-byte
// boundary before the next sub-block tag.
func DecodeSDNA(data []byte, order binary.ByteOrder) (*SDNA, error) {
	offset, err := readTag(data, 0, "SDNA")
	if err != nil {
		return nil, fail(KindBadSdnaTag, "sdna prologue", err)
	}

	offset, err = readTag(data, offset, "NAME")
	if err != nil {
		return nil, fail(KindBadSdnaTag, "name sub-block", err)
	}
	nameCount, offset, err := readInt32(data, offset, order)
	if err != nil {
		return nil, fail(KindBadSdnaTag, "name count", err)
	}
	names := make([]string, nameCount)
	for i := 0; i < nameCount; i++ {
		end := bytes.IndexByte(data[offset:], 0)
		if end < 0 {
			return nil, fail(KindBadSdnaTag, fmt.Sprintf("unterminated name %d", i), nil)
		}
		names[i] = string(data[offset : offset+end])
		offset += end + 1
	}
	offset = align4(offset)

	offset, err = readTag(data, offset, "TYPE")
	if err != nil {
		return nil, fail(KindBadSdnaTag, "type sub-block", err)
	}
	typeCount, offset, err := readInt32(data, offset, order)
	if err != nil {
		return nil, fail(KindBadSdnaTag, "type count", err)
	}
	types := make([]string, typeCount)
	for i := 0; i < typeCount; i++ {
		end := bytes.IndexByte(data[offset:], 0)
		if end < 0 {
			return nil, fail(KindBadSdnaTag, fmt.Sprintf("unterminated type %d", i), nil)
		}
		types[i] = string(data[offset : offset+end])
		offset += end + 1
	}
	offset = align4(offset)

	for i, t := range types {
		if renamed, ok := legacyRenames[t]; ok {
			types[i] = renamed
		}
	}

	offset, err = readTag(data, offset, "TLEN")
	if err != nil {
		return nil, fail(KindBadSdnaTag, "tlen sub-block", err)
	}
	lengths := make([]int, typeCount)
	for i := 0; i < typeCount; i++ {
		if offset+2 > len(data) {
			return nil, fail(KindBadSdnaTag, fmt.Sprintf("truncated tlen %d", i), nil)
		}
		lengths[i] = int(order.Uint16(data[offset : offset+2]))
		offset += 2
	}
	offset = align4(offset)

	offset, err = readTag(data, offset, "STRC")
	if err != nil {
		return nil, fail(KindBadSdnaTag, "strc sub-block", err)
	}
	structCount, offset, err := readInt32(data, offset, order)
	if err != nil {
		return nil, fail(KindBadSdnaTag, "struct count", err)
	}

	structs := make([]StructDef, structCount)
	for i := 0; i < structCount; i++ {
		var typeIndex, fieldCount int
		typeIndex, offset, err = readInt32fromUint16(data, offset, order)
		if err != nil {
			return nil, fail(KindBadSdnaTag, fmt.Sprintf("struct %d type index", i), err)
		}
		fieldCount, offset, err = readInt32fromUint16(data, offset, order)
		if err != nil {
			return nil, fail(KindBadSdnaTag, fmt.Sprintf("struct %d field count", i), err)
		}

		typeName := ""
		if typeIndex >= 0 && typeIndex < len(types) {
			typeName = types[typeIndex]
		}

		fields := make([]StructField, fieldCount)
		for f := 0; f < fieldCount; f++ {
			var fieldTypeIndex, fieldNameIndex int
			fieldTypeIndex, offset, err = readInt32fromUint16(data, offset, order)
			if err != nil {
				return nil, fail(KindBadSdnaTag, fmt.Sprintf("struct %d field %d type index", i, f), err)
			}
			fieldNameIndex, offset, err = readInt32fromUint16(data, offset, order)
			if err != nil {
				return nil, fail(KindBadSdnaTag, fmt.Sprintf("struct %d field %d name index", i, f), err)
			}
			fields[f] = StructField{TypeIndex: fieldTypeIndex, NameIndex: fieldNameIndex}
		}

		structs[i] = StructDef{TypeIndex: typeIndex, TypeName: typeName, Fields: fields}
	}

	sdna := &SDNA{
		Names:           names,
		Types:           types,
		TypeLengths:     lengths,
		Structs:         structs,
		byTypeName:      make(map[string]*StructDef),
		posByStructName: make(map[string]int),
	}
	for i := range sdna.Structs {
		sd := &sdna.Structs[i]
		sdna.byTypeName[sd.TypeName] = sd
		sdna.posByStructName[sd.TypeName] = i
	}

	return sdna, nil
}

// readInt32fromUint16 reads a 16-bit SDNA table index (struct/field entries
// are stored as uint16 pairs) and widens it to int for uniform handling
// alongside the 32-bit counts.
func readInt32fromUint16(data []byte, offset int, order binary.ByteOrder) (int, int, error) {
	if offset+2 > len(data) {
		return 0, 0, fmt.Errorf("truncated reading uint16 at offset %d", offset)
	}
	return int(order.Uint16(data[offset : offset+2])), offset + 2, nil
}
