package core

// ValueKind identifies which shape a materialized Value holds.
type ValueKind int

const (
	// KindScalar holds a single primitive (int8/16/32/64, their unsigned
	// counterparts, float32, or float64 depending on the declared type).
	KindScalar ValueKind = iota
	// KindString holds a decoded char[D] member.
	KindString
	// KindPointer holds a resolved-or-raw Pointer.
	KindPointer
	// KindStruct holds a nested StructInstance.
	KindStruct
	// KindArray holds a possibly-nested sequence of any other kind,
	// shaped by the member's declared array dimensions.
	KindArray
)

// Value is the sum type every materialized member produces.
type Value struct {
	Kind ValueKind

	Scalar interface{} // concrete Go type matches the C type's width/signedness

	Str       string // valid only when Kind == KindString and Utf8Valid
	RawBytes  []byte // the decoded bytes; kept verbatim when !Utf8Valid
	Utf8Valid bool

	Pointer *Pointer

	Struct *StructInstance

	Array []*Value
}

// AsInt extracts an integer value from a scalar, widening as needed. It is
// used by the heuristic inferencer to read sibling fields such as an
// IDProperty's type/subtype or a bNodeSocket's type discriminator.
func (v *Value) AsInt() (int64, bool) {
	if v == nil || v.Kind != KindScalar {
		return 0, false
	}
	switch n := v.Scalar.(type) {
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

// MemberInstance is one decoded field of a StructInstance.
type MemberInstance struct {
	Name         string // bare identifier, stripped of '*' and '[..]'
	DeclaredType string // SDNA type name as declared
	Spelling     string // raw member spelling, e.g. "*next" or "mat[2][4]"
	Dims         []int  // decoded array dimensions, outermost first
	IsPrimitive  bool
	IsPointer    bool
	Value        *Value

	// Owner is the struct instance this member belongs to; it lets the
	// heuristic inferencer walk from a back-reference to sibling fields
	// (e.g. CustomDataLayer.type) on the same instance.
	Owner *StructInstance
}

// StructInstance is one decoded occurrence of an SDNA struct, either a
// top-level block repetition or a value nested inside another instance.
type StructInstance struct {
	TypeName   string
	MemberName string // set only when nested inside another instance
	Block      *BlockHeader
	Members    []*MemberInstance
	Parent     *MemberInstance // the member instance enclosing this one, if nested
}

// Member returns the first member whose bare identifier matches name, or
// nil. Used by the inferencer to read sibling discriminator fields.
func (s *StructInstance) Member(name string) *MemberInstance {
	if s == nil {
		return nil
	}
	for _, m := range s.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}
