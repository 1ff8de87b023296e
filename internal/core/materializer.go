package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/scigolib/blend/internal/config"
	"github.com/scigolib/blend/internal/diag"
	"github.com/scigolib/blend/internal/utils"
)

// Context bundles everything a recursive materialization call needs:
// the stream to read from, the file's byte order and pointer width, the
// decoded schema, the address index pointer fixup resolves against, and
// the diagnostics sink recoverable conditions are reported to.
type Context struct {
	R           io.ReadSeeker
	Order       binary.ByteOrder
	PointerSize uint8
	SDNA        *SDNA
	Index       *BlockIndex
	Limits      config.Limits
	Diag        *diag.Collector
}

// MaterializeBlock runs the typed materializer (4.5) over a single block:
// it resolves the block's struct definition (from its SDNA struct index, or
// from an ad-hoc spec synthesized by the heuristic inferencer), seeks to
// the block's recorded payload offset, and decodes Count repetitions.
//
// A block with struct index 0 (the sentinel for "no structured layout") is
// left unprocessed so the inferencer can consider it. A block whose struct
// index names no known struct, or whose layout nests a struct type the SDNA
// does not define, is likewise left unprocessed, with a diagnostic recorded.
func MaterializeBlock(ctx *Context, b *BlockHeader) error {
	if b.Processed {
		return nil
	}

	var typeName string
	var fields []StructField
	var names func(nameIndex int) string

	if b.AdHocSpec != nil {
		typeName = b.AdHocSpec.TypeName
		fields = make([]StructField, len(b.AdHocSpec.Members))
		names = func(i int) string { return b.AdHocSpec.Members[i].Spelling }
	} else {
		if b.SDNAIndex == 0 {
			return nil
		}
		sd := ctx.SDNA.StructByIndex(b.SDNAIndex)
		if sd == nil {
			ctx.Diag.Warn(diag.UnknownStructIndex, b.Code, b.OldAddress, "struct index %d has no definition", b.SDNAIndex)
			return nil
		}
		typeName = sd.TypeName
		fields = sd.Fields
		names = func(i int) string { return ctx.SDNA.Names[fields[i].NameIndex] }
	}

	if _, err := ctx.R.Seek(b.PayloadOffset, io.SeekStart); err != nil {
		return utils.WrapError(fmt.Sprintf("seek to block %q payload", b.Code), err)
	}

	instances := make([]*StructInstance, 0, b.Count)
	for i := 0; i < b.Count; i++ {
		inst, err := materializeStructBody(ctx, b, typeName, fields, names, nil, 0)
		if err != nil {
			if errors.Is(err, errUnknownStructType) {
				// Already reported by materializeStruct; the block stays unprocessed.
				return nil
			}
			return err
		}
		inst.Block = b
		instances = append(instances, inst)
	}

	b.Instances = instances
	b.Processed = true
	return nil
}

// errUnknownStructType marks a nested member whose declared type has no SDNA
// struct definition; MaterializeBlock treats it as recoverable.
var errUnknownStructType = errors.New("unknown struct type")

// materializeStruct looks up typeName in the SDNA and materializes one
// instance of it, for use by nested-struct members (rule 5 of 4.5).
func materializeStruct(ctx *Context, b *BlockHeader, typeName string, parent *MemberInstance, depth int) (*StructInstance, error) {
	sd := ctx.SDNA.StructByName(typeName)
	if sd == nil {
		ctx.Diag.Warn(diag.UnknownTypeName, b.Code, b.OldAddress, "no struct definition for type %q", typeName)
		return nil, fmt.Errorf("%w %q", errUnknownStructType, typeName)
	}
	names := func(i int) string { return ctx.SDNA.Names[sd.Fields[i].NameIndex] }
	inst, err := materializeStructBody(ctx, b, typeName, sd.Fields, names, parent, depth)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		inst.MemberName = parent.Name
	}
	return inst, nil
}

func materializeStructBody(ctx *Context, b *BlockHeader, typeName string, fields []StructField, nameAt func(int) string, parent *MemberInstance, depth int) (*StructInstance, error) {
	if depth > ctx.Limits.MaxDepth {
		return nil, fmt.Errorf("struct %q: max recursion depth %d exceeded", typeName, ctx.Limits.MaxDepth)
	}

	inst := &StructInstance{TypeName: typeName, Block: b, Parent: parent}

	for i := range fields {
		spelling := nameAt(i)
		declType := ctx.SDNA.TypeNameAt(fields[i].TypeIndex)
		if b.AdHocSpec != nil {
			declType = b.AdHocSpec.Members[i].DeclaredType
		}

		parsed, err := ParseMemberName(spelling)
		if err != nil {
			ctx.Diag.Warn(diag.ParseMemberSpelling, b.Code, b.OldAddress, "%v", err)
			continue
		}

		mi := &MemberInstance{
			Name:         parsed.Name,
			DeclaredType: declType,
			Spelling:     spelling,
			Dims:         parsed.Dims,
			IsPointer:    parsed.PointerRank > 0,
			IsPrimitive:  IsPrimitive(declType),
			Owner:        inst,
		}

		val, err := materializeMember(ctx, b, inst, mi, parsed, declType, depth+1)
		if err != nil {
			return nil, err
		}
		mi.Value = val
		inst.Members = append(inst.Members, mi)
	}

	return inst, nil
}

// materializeMember applies the five traversal rules of 4.5 to one member.
// The array shapes (rules 3 and 4) are checked before the primitive-scalar
// rule (2), so a primitive array is never read as a single scalar.
func materializeMember(ctx *Context, b *BlockHeader, owner *StructInstance, mi *MemberInstance, parsed *ParsedName, declType string, depth int) (*Value, error) {
	// Rule 1: any indirection makes this a pointer, regardless of declared
	// type or array dimensions.
	if parsed.PointerRank > 0 {
		if len(parsed.Dims) == 0 {
			return materializePointer(ctx, b, owner, mi, declType, 0)
		}
		return materializeArrayOfPointers(ctx, b, owner, mi, declType, parsed.Dims)
	}

	// Rule 3: char[D] (single dimension) is a string, checked before the
	// general array rule.
	if declType == "char" && len(parsed.Dims) == 1 {
		return materializeCharString(ctx, b, parsed.Dims[0])
	}

	// Rule 4: any remaining array dimensions recurse rectangularly.
	if len(parsed.Dims) > 0 {
		return materializeArray(ctx, b, owner, mi, declType, parsed.Dims, depth)
	}

	// Rule 2: primitive scalar.
	if IsPrimitive(declType) {
		return materializePrimitiveScalar(ctx, declType)
	}

	// Rule 5: nested struct.
	inst, err := materializeStruct(ctx, b, declType, mi, depth)
	if err != nil {
		return nil, err
	}
	return &Value{Kind: KindStruct, Struct: inst}, nil
}

func materializePointer(ctx *Context, b *BlockHeader, owner *StructInstance, mi *MemberInstance, declType string, index int) (*Value, error) {
	addr, err := utils.ReadPointer(ctx.R, ctx.Order, ctx.PointerSize)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("read pointer member %q", mi.Spelling), err)
	}

	p := &Pointer{Addr: addr}
	if addr != 0 {
		if target, ok := ctx.Index.ByAddr[addr]; ok {
			p.Target = target
			target.BackRefs.Add(b, BackRefEntry{
				OwnerStructName: owner.TypeName,
				MemberType:      declType,
				Spelling:        mi.Spelling,
				From:            owner,
				Member:          mi,
			})
		}
	}
	return &Value{Kind: KindPointer, Pointer: p}, nil
}

// materializeArrayOfPointers handles a declared array of pointers, e.g.
// "*rect[2]": the parsed dimensions describe the array shape, but every
// leaf element is itself pointer-width since PointerRank > 0.
func materializeArrayOfPointers(ctx *Context, b *BlockHeader, owner *StructInstance, mi *MemberInstance, declType string, dims []int) (*Value, error) {
	n := dims[0]
	rest := dims[1:]
	elems := make([]*Value, n)
	for i := 0; i < n; i++ {
		if len(rest) == 0 {
			v, err := materializePointer(ctx, b, owner, mi, declType, i)
			if err != nil {
				return nil, err
			}
			elems[i] = v
			continue
		}
		v, err := materializeArrayOfPointers(ctx, b, owner, mi, declType, rest)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &Value{Kind: KindArray, Array: elems}, nil
}

func materializeCharString(ctx *Context, b *BlockHeader, d int) (*Value, error) {
	buf := make([]byte, d)
	if err := utils.ReadExact(ctx.R, buf); err != nil {
		return nil, utils.WrapError(fmt.Sprintf("read char[%d]", d), err)
	}
	nul := d
	for i, c := range buf {
		if c == 0 {
			nul = i
			break
		}
	}
	raw := buf[:nul]
	v := &Value{Kind: KindString, RawBytes: append([]byte(nil), raw...)}
	if utf8.Valid(raw) {
		v.Str = string(raw)
		v.Utf8Valid = true
	} else {
		ctx.Diag.Warn(diag.Utf8Decode, b.Code, b.OldAddress, "char[%d] member is not valid utf-8", d)
	}
	return v, nil
}

func materializeArray(ctx *Context, b *BlockHeader, owner *StructInstance, mi *MemberInstance, declType string, dims []int, depth int) (*Value, error) {
	n := dims[0]
	rest := dims[1:]
	elems := make([]*Value, n)
	for i := 0; i < n; i++ {
		if len(rest) == 0 {
			var v *Value
			var err error
			if declType == "char" {
				v, err = materializePrimitiveScalar(ctx, declType)
			} else if IsPrimitive(declType) {
				v, err = materializePrimitiveScalar(ctx, declType)
			} else {
				var inst *StructInstance
				inst, err = materializeStruct(ctx, b, declType, mi, depth)
				if err == nil {
					v = &Value{Kind: KindStruct, Struct: inst}
				}
			}
			if err != nil {
				return nil, err
			}
			elems[i] = v
			continue
		}
		v, err := materializeArray(ctx, b, owner, mi, declType, rest, depth)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &Value{Kind: KindArray, Array: elems}, nil
}

// materializePrimitiveScalar reads one scalar of a primitive C type at its
// natural width, host endianness, with the C type's natural signedness.
// char is read as a single signed byte; float/double use IEEE-754 bit
// reinterpretation.
func materializePrimitiveScalar(ctx *Context, declType string) (*Value, error) {
	size, ok := PrimitiveSize(declType)
	if !ok || size == 0 {
		return nil, fmt.Errorf("type %q has no scalar representation", declType)
	}

	switch declType {
	case "char":
		var b [1]byte
		if err := utils.ReadExact(ctx.R, b[:]); err != nil {
			return nil, utils.WrapError("read char", err)
		}
		return &Value{Kind: KindScalar, Scalar: int8(b[0])}, nil
	case "uchar":
		var b [1]byte
		if err := utils.ReadExact(ctx.R, b[:]); err != nil {
			return nil, utils.WrapError("read uchar", err)
		}
		return &Value{Kind: KindScalar, Scalar: uint8(b[0])}, nil
	case "short":
		v, err := utils.ReadUint16(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read short", err)
		}
		return &Value{Kind: KindScalar, Scalar: int16(v)}, nil
	case "ushort":
		v, err := utils.ReadUint16(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read ushort", err)
		}
		return &Value{Kind: KindScalar, Scalar: v}, nil
	case "int":
		v, err := utils.ReadUint32(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read int", err)
		}
		return &Value{Kind: KindScalar, Scalar: int32(v)}, nil
	case "long", "ulong":
		// Both are treated as 4-byte per the type-length table; "long" is
		// read as signed, "ulong" as unsigned.
		v, err := utils.ReadUint32(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("read %s", declType), err)
		}
		if declType == "long" {
			return &Value{Kind: KindScalar, Scalar: int32(v)}, nil
		}
		return &Value{Kind: KindScalar, Scalar: v}, nil
	case "float":
		v, err := utils.ReadUint32(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read float", err)
		}
		return &Value{Kind: KindScalar, Scalar: math.Float32frombits(v)}, nil
	case "double":
		v, err := utils.ReadUint64(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read double", err)
		}
		return &Value{Kind: KindScalar, Scalar: math.Float64frombits(v)}, nil
	case "int64_t":
		v, err := utils.ReadUint64(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read int64_t", err)
		}
		return &Value{Kind: KindScalar, Scalar: int64(v)}, nil
	case "uint64_t":
		v, err := utils.ReadUint64(ctx.R, ctx.Order)
		if err != nil {
			return nil, utils.WrapError("read uint64_t", err)
		}
		return &Value{Kind: KindScalar, Scalar: v}, nil
	default:
		return nil, fmt.Errorf("unhandled primitive type %q", declType)
	}
}
