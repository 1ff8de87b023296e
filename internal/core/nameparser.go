package core

import (
	"fmt"
	"regexp"
	"strconv"
)

// principalName matches the common case: an optional run of leading '*'
// (pointer depth), a bare C identifier, and zero or more bracketed array
// dimensions, e.g. "*next", "mat[4][4]", "id".
var principalName = regexp.MustCompile(`^(?P<ptr>\*+)?(?P<cname>[A-Za-z_][A-Za-z_0-9]*)(?P<cdim>(\[\d+\])+)?$`)

// functionPointerName matches the one shape the principal pattern cannot:
// a C function-pointer member such as "(*poll)()". The bare identifier is
// extracted and the member is treated as a single pointer with no array
// dimensions.
var functionPointerName = regexp.MustCompile(`^\((?P<fptr>\*[A-Za-z_][A-Za-z_0-9]*)\)\(\)$`)

var arrayDim = regexp.MustCompile(`\[(\d+)\]`)

// ParsedName is the decoded shape of one SDNA member spelling.
type ParsedName struct {
	Name        string // bare identifier
	PointerRank int    // number of leading '*'
	Dims        []int  // array dimensions, outermost first; nil if none
	IsFuncPtr   bool   // matched the function-pointer fallback pattern
}

// ParseMemberName decodes a raw SDNA member spelling using the principal
// grammar, falling back to the function-pointer pattern. Spellings matching
// neither are reported to the caller as an error so they can be logged
// through internal/diag and the member skipped rather than aborting the
// whole parse.
func ParseMemberName(spelling string) (*ParsedName, error) {
	if m := principalName.FindStringSubmatch(spelling); m != nil {
		idx := principalName.SubexpIndex
		ptr := m[idx("ptr")]
		cname := m[idx("cname")]
		cdim := m[idx("cdim")]

		var dims []int
		if cdim != "" {
			for _, d := range arrayDim.FindAllStringSubmatch(cdim, -1) {
				n, err := strconv.Atoi(d[1])
				if err != nil {
					return nil, fmt.Errorf("parse array dimension %q: %w", d[1], err)
				}
				dims = append(dims, n)
			}
		}

		return &ParsedName{
			Name:        cname,
			PointerRank: len(ptr),
			Dims:        dims,
		}, nil
	}

	if m := functionPointerName.FindStringSubmatch(spelling); m != nil {
		idx := functionPointerName.SubexpIndex
		fptr := m[idx("fptr")] // "*name"
		return &ParsedName{
			Name:        fptr[1:],
			PointerRank: 1,
			IsFuncPtr:   true,
		}, nil
	}

	return nil, fmt.Errorf("member spelling %q matches neither the principal nor function-pointer pattern", spelling)
}
