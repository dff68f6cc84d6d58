// Package tabconv reads MapInfo TAB tables.
//
// A table is stored in four files sharing a base name: the .tab header
// (schema), the .dat attribute records (dBase layout), the optional .id
// spatial index and the .map geometry file. Only point geometry is
// decoded; other object types are reported as warnings and the row
// gets no geometry.
//
// Example usage:
//
//	table, err := tabconv.Open("cities.tab")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range table.Rows() {
//	    name, _ := row.Get("NAME")
//	    if row.Geometry != nil {
//	        fmt.Println(name, row.Geometry.X(), row.Geometry.Y())
//	    }
//	}
package tabconv

import (
	"io"
	"iter"

	"github.com/dyuri/tabconv/internal/model"
	"github.com/dyuri/tabconv/internal/text"
)

// Data model
type (
	Schema          = model.TableSchema
	Field           = model.FieldDescriptor
	FieldKind       = model.FieldKind
	Value           = model.Value
	Row             = model.Row
	Point           = model.Point
	AttributeHeader = model.AttributeHeader
	MapHeader       = model.MapHeader
	CodecTable      = text.CodecTable
	Codec           = text.Codec
)

// Field kinds
const (
	KindText    = model.KindText
	KindInteger = model.KindInteger
	KindDecimal = model.KindDecimal
)

// Decoding errors, usable with errors.As
type (
	SchemaFormatError        = model.SchemaFormatError
	SchemaConsistencyError   = model.SchemaConsistencyError
	TruncatedFileError       = model.TruncatedFileError
	FormatError              = model.FormatError
	RecordConsistencyError   = model.RecordConsistencyError
	UnsupportedGeometryError = model.UnsupportedGeometryError
)

// ErrMissingIndexFile is reported in Table.Warnings when the .id file is absent
var ErrMissingIndexFile = model.ErrMissingIndexFile

// DefaultCodecs returns the built-in charset table
func DefaultCodecs() CodecTable {
	return text.DefaultCodecs()
}

// Table is an immutable snapshot of a decoded table
type Table struct {
	path      string
	schema    *model.TableSchema
	codec     text.Codec
	attrs     model.AttributeHeader
	mapHeader *model.MapHeader
	rows      []model.Row
	deleted   int
	warnings  []error
}

// Path returns the .tab file the table was read from
func (t *Table) Path() string {
	return t.path
}

// Schema returns the column definitions
func (t *Table) Schema() *Schema {
	return t.schema
}

// Codec returns the codec used for attribute strings
func (t *Table) Codec() Codec {
	return t.codec
}

// AttributeHeader returns the header of the .dat file
func (t *Table) AttributeHeader() AttributeHeader {
	return t.attrs
}

// MapHeader returns the header of the .map file, or nil if no geometry
// file was read
func (t *Table) MapHeader() *MapHeader {
	return t.mapHeader
}

// Len returns the number of live rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Deleted returns the number of rows skipped because they are flagged deleted
func (t *Table) Deleted() int {
	return t.deleted
}

// Row returns the i-th live row
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Rows iterates over live rows in on-disk order. The sequence can be
// ranged over any number of times.
func (t *Table) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i, row := range t.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// Warnings returns the recoverable problems found while loading:
// ErrMissingIndexFile and one *UnsupportedGeometryError per affected row
func (t *Table) Warnings() []error {
	return append([]error(nil), t.warnings...)
}

// WriteTable writes a table in MapInfo TAB format.
//
// Currently not implemented.
func WriteTable(w io.Writer, t *Table) error {
	return ErrNotImplemented
}

// Common errors
var (
	ErrNotImplemented = &Error{Code: "not_implemented", Message: "feature not yet implemented"}
)

// Error is returned by Open and names the pipeline stage that failed
type Error struct {
	Code    string // schema, attributes, index, geometry
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
