package model

import (
	"strconv"
	"time"
)

// Value is a single typed attribute value
type Value struct {
	Kind     FieldKind
	Text     string
	Int      int64
	Float    float64
	Decimals int // Decimal places for KindDecimal
}

// TextValue creates a Char value
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// IntValue creates an Integer value
func IntValue(v int64) Value {
	return Value{Kind: KindInteger, Int: v}
}

// DecimalValue creates a Decimal value with a fixed number of decimal places
func DecimalValue(v float64, decimals int) Value {
	return Value{Kind: KindDecimal, Float: v, Decimals: decimals}
}

// Interface returns the value as string, int64 or float64
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindDecimal:
		return v.Float
	default:
		return v.Text
	}
}

// String formats the value. Decimals are printed with their declared precision.
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDecimal:
		return strconv.FormatFloat(v.Float, 'f', v.Decimals, 64)
	default:
		return v.Text
	}
}

// AttributeRecord is one live row of the attribute file.
// Values are in schema order.
type AttributeRecord struct {
	RowID  int     // Zero-based on-disk row number (deleted rows included in numbering)
	Values []Value // One value per schema field
	schema *TableSchema
}

// NewAttributeRecord binds values to a schema
func NewAttributeRecord(schema *TableSchema, rowID int, values []Value) AttributeRecord {
	return AttributeRecord{RowID: rowID, Values: values, schema: schema}
}

// Get returns the value of the named column
func (r AttributeRecord) Get(name string) (Value, bool) {
	if r.schema == nil {
		return Value{}, false
	}
	i, ok := r.schema.byName[name]
	if !ok || i >= len(r.Values) {
		return Value{}, false
	}
	return r.Values[i], true
}

// Map returns column name -> native value
func (r AttributeRecord) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Values))
	if r.schema == nil {
		return m
	}
	for i, f := range r.schema.Fields {
		if i < len(r.Values) {
			m[f.Name] = r.Values[i].Interface()
		}
	}
	return m
}

// AttributeHeader is the 32-byte header of the attribute file
type AttributeHeader struct {
	Version      byte      // dBase version byte
	LastModified time.Time // Last update date (year stored as offset from 1900)
	RecordCount  int       // Records on disk, deleted included
	HeaderLength int       // Bytes before the first record
	RecordLength int       // Bytes per record including the liveness flag
}

// AttributeTable is the decoded attribute file
type AttributeTable struct {
	Header  AttributeHeader
	Records []AttributeRecord // Live records in on-disk order
	Deleted []int             // Row ids of records flagged as deleted
}
