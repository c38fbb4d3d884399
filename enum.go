package natgen

// EnumTable is the generator's enum-value table: for each enum
// decl, field[name] -> int, computed eagerly before emission. Grounded on
// the teacher's eager-table-before-emission idiom (lambdaOffsets,
// functionSignatures built up front in codegen.go) applied to enum values
// instead of function addresses.
type EnumTable struct {
	values map[string]map[string]int64 // enum name -> field name -> value
}

// NewEnumTable creates an empty table.
func NewEnumTable() *EnumTable {
	return &EnumTable{values: make(map[string]map[string]int64)}
}

// Build computes every field's value for one enum declaration and records
// it. Flag enums double starting at 1 (1, 2, 4, 8, ...); ordinary enums
// increment from 0 unless a field carries an explicit constant (already
// folded onto the AST by the constant-evaluator collaborator), in which case
// the following fields continue from that value plus one.
func (et *EnumTable) Build(decl EnumDecl) {
	fields := make(map[string]int64, len(decl.Fields))
	var next int64
	if decl.IsFlags {
		next = 1
	}
	for _, f := range decl.Fields {
		var v int64
		switch {
		case f.Value != nil:
			v = *f.Value
			if !decl.IsFlags {
				next = v + 1
			}
		case decl.IsFlags:
			v = next
			next *= 2
		default:
			v = next
			next++
		}
		fields[f.Name] = v
	}
	et.values[decl.Name] = fields
}

// Value returns the computed value for enumName.fieldName.
func (et *EnumTable) Value(enumName, fieldName string) (int64, bool) {
	fields, ok := et.values[enumName]
	if !ok {
		return 0, false
	}
	v, ok := fields[fieldName]
	return v, ok
}
