package core

// primitiveSizes is the closed set of scalar C types the SDNA may declare a
// member as, each mapped to its width in bytes. Any type name absent from
// this table is a struct name, resolved through the SDNA struct table
// instead.
var primitiveSizes = map[string]int{
	"char":     1,
	"uchar":    1,
	"short":    2,
	"ushort":   2,
	"int":      4,
	"long":     4,
	"ulong":    4,
	"float":    4,
	"double":   8,
	"int64_t":  8,
	"uint64_t": 8,
	"void":     0,
}

// IsPrimitive reports whether name is one of the fixed C scalar types
// rather than a struct name.
func IsPrimitive(name string) bool {
	_, ok := primitiveSizes[name]
	return ok
}

// PrimitiveSize returns the byte width of a primitive type name. The second
// return value is false for struct names.
func PrimitiveSize(name string) (int, bool) {
	size, ok := primitiveSizes[name]
	return size, ok
}
