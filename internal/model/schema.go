package model

// FieldKind is the storage type of a table column
type FieldKind int

const (
	KindText    FieldKind = iota + 1 // Char(n)
	KindInteger                      // Integer, always 4 bytes on disk
	KindDecimal                      // Decimal(n,d), stored as ASCII digits
)

// IntegerWidth is the on-disk width of an Integer column
const IntegerWidth = 4

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "Char"
	case KindInteger:
		return "Integer"
	case KindDecimal:
		return "Decimal"
	default:
		return "Unknown"
	}
}

// FieldDescriptor describes one column of the table
type FieldDescriptor struct {
	Name     string    // Column name as declared in the .tab file
	Kind     FieldKind // Storage type
	Length   int       // Byte width (4 for Integer)
	Decimals int       // Decimal places, Decimal columns only
	Index    *int      // Optional "Index n" ordinal
}

// HasIndex reports whether the field was declared with an Index ordinal
func (f FieldDescriptor) HasIndex() bool {
	return f.Index != nil
}

// TableSchema is the ordered column list of a table.
// Field order equals on-disk field order in the attribute file.
type TableSchema struct {
	Version int               // !version value
	Charset string            // !charset token as written
	Codec   string            // Name of the resolved text codec
	Fields  []FieldDescriptor // Columns in declaration order
	byName  map[string]int
}

// NewTableSchema creates an empty schema
func NewTableSchema() *TableSchema {
	return &TableSchema{byName: make(map[string]int)}
}

// AddField appends a column. It returns false if the name is already taken.
func (s *TableSchema) AddField(f FieldDescriptor) bool {
	if s.byName == nil {
		s.byName = make(map[string]int)
	}
	if _, ok := s.byName[f.Name]; ok {
		return false
	}
	s.byName[f.Name] = len(s.Fields)
	s.Fields = append(s.Fields, f)
	return true
}

// Field returns the column with the given name
func (s *TableSchema) Field(name string) (FieldDescriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return s.Fields[i], true
}

// NumFields returns the number of columns
func (s *TableSchema) NumFields() int {
	return len(s.Fields)
}

// Names returns column names in order
func (s *TableSchema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// RecordLength returns the byte length of one attribute record,
// including the leading liveness flag.
func (s *TableSchema) RecordLength() int {
	n := 1
	for _, f := range s.Fields {
		n += f.Length
	}
	return n
}
