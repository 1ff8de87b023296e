package core

import "fmt"

// Pointer is a materialized pointer-typed member. Addr is the raw old
// address as stored in the file; Target is filled in during pointer fixup
// once the address is known to resolve to a real block.
type Pointer struct {
	Addr   uint64
	Target *BlockHeader // nil for a null pointer or one that resolves to nothing
}

// IsNull reports whether the pointer was stored as the null address.
func (p *Pointer) IsNull() bool {
	return p == nil || p.Addr == 0
}

// BackRefEntry is one member instance, anywhere in the file, that holds a
// pointer resolving to a particular block.
type BackRefEntry struct {
	OwnerStructName string // declared type name of the struct holding the pointer
	MemberType      string // the pointer member's declared (pre-indirection) type
	Spelling        string // raw member spelling, e.g. "*scene" or "*tool_slots"
	From            *StructInstance
	Member          *MemberInstance
}

// QuickRef renders the human-readable triple the format calls a
// "quick-ref": "<owner struct>|<member type> <spelling>".
func (e BackRefEntry) QuickRef() string {
	return fmt.Sprintf("%s|%s %s", e.OwnerStructName, e.MemberType, e.Spelling)
}

// BackRefSet accumulates every reference to a single block's address: a
// deduplicated set of quick-ref triples, and the full ordered, non-
// deduplicated sequence of referring member-instance handles (which may
// include more than one entry sharing a quick-ref, e.g. each element of an
// array of pointers). The referring block for any entry is reachable via
// entry.From.Block.
type BackRefSet struct {
	seen      map[string]struct{}
	QuickRefs []string
	Refs      []BackRefEntry
}

func newBackRefSet() *BackRefSet {
	return &BackRefSet{
		seen: make(map[string]struct{}),
	}
}

// Add records a reference from a member instance, identified by its owning
// struct's block, to this set's block.
func (s *BackRefSet) Add(fromBlock *BlockHeader, entry BackRefEntry) {
	if s == nil || fromBlock == nil {
		return
	}
	s.Refs = append(s.Refs, entry)

	qr := entry.QuickRef()
	if _, dup := s.seen[qr]; !dup {
		s.seen[qr] = struct{}{}
		s.QuickRefs = append(s.QuickRefs, qr)
	}
}

// Count returns the number of referring member-instance handles recorded.
func (s *BackRefSet) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Refs)
}
