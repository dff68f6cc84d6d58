package model

import (
	"errors"
	"fmt"
)

// File kinds used in error context
const (
	FileSchema    = "tab"
	FileAttribute = "dat"
	FileIndex     = "id"
	FileGeometry  = "map"
)

// ErrMissingIndexFile indicates the .id file does not exist.
// The table is still readable; every row has no geometry.
var ErrMissingIndexFile = errors.New("spatial index file not found")

// SchemaFormatError indicates malformed header text in the .tab file
type SchemaFormatError struct {
	Line   int    // 1-based line number, 0 if not line specific
	Text   string // Offending line
	Reason string
}

func (e *SchemaFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema format: line %d: %s (%q)", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("schema format: %s", e.Reason)
}

// SchemaConsistencyError indicates the attribute file header disagrees with the schema
type SchemaConsistencyError struct {
	Field     string // Schema field name
	Attribute string // Descriptor property that differs: name, type, length, decimals, count
	Want      string // Value derived from the schema
	Got       string // Value stored in the attribute file
}

func (e *SchemaConsistencyError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch: %s = %s, schema declares %s", e.Attribute, e.Got, e.Want)
	}
	return fmt.Sprintf("schema mismatch: field %s: %s = %s, schema declares %s",
		e.Field, e.Attribute, e.Got, e.Want)
}

// TruncatedFileError indicates a short read where a fixed-size region was expected
type TruncatedFileError struct {
	File   string
	Offset int64
	Want   int
	Got    int
}

func (e *TruncatedFileError) Error() string {
	return fmt.Sprintf("truncated %s file: need %d bytes at offset %d, got %d",
		e.File, e.Want, e.Offset, e.Got)
}

// FormatError indicates a fixed binary layout was violated
type FormatError struct {
	File   string
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s file at offset %d: %s", e.File, e.Offset, e.Reason)
}

// RecordConsistencyError indicates an object does not match the row referencing it
type RecordConsistencyError struct {
	Row    int
	Offset int64
	Reason string
}

func (e *RecordConsistencyError) Error() string {
	return fmt.Sprintf("row %d: object at offset %d: %s", e.Row, e.Offset, e.Reason)
}

// UnsupportedGeometryError indicates an object type with no decoder.
// It is recoverable: the row gets no geometry.
type UnsupportedGeometryError struct {
	Row    int
	Offset int64
	Type   byte
}

func (e *UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("row %d: unsupported geometry type 0x%02x at offset %d", e.Row, e.Type, e.Offset)
}
