package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dyuri/tabconv/internal/model"
	"github.com/dyuri/tabconv/internal/text"
)

// dBase layout constants
const (
	datHeaderSize     = 32
	datFieldSize      = 32
	datTerminator     = 0x0D
	recordLive        = ' '
	recordDeleted     = '*'
	datFieldNameBytes = 11
)

// FieldHeader is one 32-byte field descriptor of the attribute file
type FieldHeader struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// dBase type tags accepted for each schema kind
var allowedTags = map[model.FieldKind]string{
	model.KindText:    "C",
	model.KindInteger: "CNI",
	model.KindDecimal: "NC",
}

// Tags that may appear in a dBase descriptor at all
const knownTags = "CNIFDLM"

// Decimal fields hold plain ASCII digits with an optional sign and point
var decimalRe = regexp.MustCompile(`^[+-]?\d*\.?\d*$`)

// AttributeReader decodes the dBase-derived attribute file (.dat)
type AttributeReader struct {
	r      io.ReaderAt
	size   int64
	endian binary.ByteOrder
	schema *model.TableSchema
	codec  text.Codec
}

// NewAttributeReader creates a reader for records described by schema
func NewAttributeReader(r io.ReaderAt, size int64, schema *model.TableSchema, codec text.Codec) *AttributeReader {
	return &AttributeReader{
		r:      r,
		size:   size,
		endian: binary.LittleEndian,
		schema: schema,
		codec:  codec,
	}
}

// Parse validates the file against the schema and decodes all live records
func (r *AttributeReader) Parse() (*model.AttributeTable, error) {
	header, err := r.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	fields, err := r.ReadFieldHeaders()
	if err != nil {
		return nil, fmt.Errorf("read field descriptors: %w", err)
	}

	if mismatches := ValidateFields(r.schema, fields); len(mismatches) > 0 {
		errs := make([]error, len(mismatches))
		for i, m := range mismatches {
			errs[i] = m
		}
		return nil, errors.Join(errs...)
	}

	if want := r.schema.RecordLength(); header.RecordLength != want {
		return nil, &model.SchemaConsistencyError{
			Attribute: "record length",
			Want:      strconv.Itoa(want),
			Got:       strconv.Itoa(header.RecordLength),
		}
	}

	dataEnd := int64(header.HeaderLength) + int64(header.RecordCount)*int64(header.RecordLength)
	if dataEnd > r.size {
		return nil, &model.TruncatedFileError{
			File:   model.FileAttribute,
			Offset: int64(header.HeaderLength),
			Want:   int(dataEnd - int64(header.HeaderLength)),
			Got:    int(r.size - int64(header.HeaderLength)),
		}
	}

	table := &model.AttributeTable{
		Header:  header,
		Records: make([]model.AttributeRecord, 0, header.RecordCount),
	}

	buf := make([]byte, header.RecordLength)
	for row := 0; row < header.RecordCount; row++ {
		offset := int64(header.HeaderLength) + int64(row)*int64(header.RecordLength)
		if err := readFull(r.r, model.FileAttribute, buf, offset); err != nil {
			return nil, fmt.Errorf("read record %d: %w", row, err)
		}

		switch buf[0] {
		case recordDeleted:
			table.Deleted = append(table.Deleted, row)
			continue
		case recordLive:
		default:
			return nil, &model.FormatError{
				File:   model.FileAttribute,
				Offset: offset,
				Reason: fmt.Sprintf("record %d: invalid deletion flag 0x%02x", row, buf[0]),
			}
		}

		values, err := r.decodeRecord(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", row, err)
		}
		table.Records = append(table.Records, model.NewAttributeRecord(r.schema, row, values))
	}

	return table, nil
}

// ReadHeader reads the 32-byte file header and checks the header length
// against the schema's field count.
func (r *AttributeReader) ReadHeader() (model.AttributeHeader, error) {
	buf := make([]byte, datHeaderSize)
	if err := readFull(r.r, model.FileAttribute, buf, 0); err != nil {
		return model.AttributeHeader{}, err
	}

	year, month, day := 1900+int(buf[1]), int(buf[2]), int(buf[3])
	modified := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if int(modified.Month()) != month || modified.Day() != day {
		return model.AttributeHeader{}, &model.FormatError{
			File:   model.FileAttribute,
			Offset: 1,
			Reason: fmt.Sprintf("invalid last modified date %d-%02d-%02d", year, month, day),
		}
	}

	header := model.AttributeHeader{
		Version:      buf[0],
		LastModified: modified,
		RecordCount:  int(r.endian.Uint32(buf[4:8])),
		HeaderLength: int(r.endian.Uint16(buf[8:10])),
		RecordLength: int(r.endian.Uint16(buf[10:12])),
	}

	descriptors := header.HeaderLength - datHeaderSize - 1
	if descriptors < 0 || descriptors%datFieldSize != 0 {
		return header, &model.FormatError{
			File:   model.FileAttribute,
			Offset: 8,
			Reason: fmt.Sprintf("header length %d is not 32 + 32*n + 1", header.HeaderLength),
		}
	}
	if n := descriptors / datFieldSize; n != r.schema.NumFields() {
		return header, &model.SchemaConsistencyError{
			Attribute: "field count",
			Want:      strconv.Itoa(r.schema.NumFields()),
			Got:       strconv.Itoa(n),
		}
	}

	return header, nil
}

// ReadFieldHeaders reads one descriptor per schema field and the
// terminator byte that follows them.
func (r *AttributeReader) ReadFieldHeaders() ([]FieldHeader, error) {
	n := r.schema.NumFields()
	buf := make([]byte, n*datFieldSize+1)
	if err := readFull(r.r, model.FileAttribute, buf, datHeaderSize); err != nil {
		return nil, err
	}

	if term := buf[len(buf)-1]; term != datTerminator {
		return nil, &model.FormatError{
			File:   model.FileAttribute,
			Offset: int64(datHeaderSize + len(buf) - 1),
			Reason: fmt.Sprintf("header terminator 0x%02x, want 0x0d", term),
		}
	}

	fields := make([]FieldHeader, n)
	for i := range fields {
		d := buf[i*datFieldSize : (i+1)*datFieldSize]
		offset := int64(datHeaderSize + i*datFieldSize)

		name, err := r.codec.Decode(bytes.Trim(d[:datFieldNameBytes], "\x00"))
		if err != nil {
			return nil, fmt.Errorf("decode field %d name: %w", i, err)
		}

		tag := d[11]
		if strings.IndexByte(knownTags, tag) < 0 {
			return nil, &model.FormatError{
				File:   model.FileAttribute,
				Offset: offset + 11,
				Reason: fmt.Sprintf("field %d: unrecognized type tag 0x%02x", i, tag),
			}
		}

		fields[i] = FieldHeader{
			Name:     name,
			Type:     tag,
			Length:   int(d[16]),
			Decimals: int(d[17]),
		}
	}

	return fields, nil
}

// ValidateFields compares attribute file descriptors with the schema.
// It returns one entry per disagreement, or nil if they match.
func ValidateFields(schema *model.TableSchema, fields []FieldHeader) []*model.SchemaConsistencyError {
	var mismatches []*model.SchemaConsistencyError

	if len(fields) != schema.NumFields() {
		return append(mismatches, &model.SchemaConsistencyError{
			Attribute: "field count",
			Want:      strconv.Itoa(schema.NumFields()),
			Got:       strconv.Itoa(len(fields)),
		})
	}

	for i, want := range schema.Fields {
		got := fields[i]

		// dBase names are truncated to 10 characters
		if got.Name == "" || !hasPrefixFold(want.Name, got.Name) {
			mismatches = append(mismatches, &model.SchemaConsistencyError{
				Field: want.Name, Attribute: "name", Want: want.Name, Got: got.Name,
			})
		}
		if strings.IndexByte(allowedTags[want.Kind], got.Type) < 0 {
			mismatches = append(mismatches, &model.SchemaConsistencyError{
				Field: want.Name, Attribute: "type", Want: want.Kind.String(), Got: string(got.Type),
			})
		}
		if got.Length != want.Length {
			mismatches = append(mismatches, &model.SchemaConsistencyError{
				Field: want.Name, Attribute: "length",
				Want: strconv.Itoa(want.Length), Got: strconv.Itoa(got.Length),
			})
		}
		if want.Kind == model.KindDecimal && got.Decimals != want.Decimals {
			mismatches = append(mismatches, &model.SchemaConsistencyError{
				Field: want.Name, Attribute: "decimals",
				Want: strconv.Itoa(want.Decimals), Got: strconv.Itoa(got.Decimals),
			})
		}
	}

	return mismatches
}

// decodeRecord converts one live record into schema-ordered values
func (r *AttributeReader) decodeRecord(buf []byte, offset int64) ([]model.Value, error) {
	values := make([]model.Value, len(r.schema.Fields))
	pos := 1 // skip deletion flag

	for i, f := range r.schema.Fields {
		raw := buf[pos : pos+f.Length]

		switch f.Kind {
		case model.KindInteger:
			values[i] = model.IntValue(int64(int32(r.endian.Uint32(raw))))

		case model.KindText:
			s, err := r.codec.Decode(bytes.Trim(raw, "\x00"))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			values[i] = model.TextValue(s)

		case model.KindDecimal:
			digits := string(bytes.Trim(raw, "\x00 "))
			v := 0.0
			if digits != "" {
				var err error
				if !decimalRe.MatchString(digits) {
					err = strconv.ErrSyntax
				} else {
					v, err = strconv.ParseFloat(digits, 64)
				}
				if err != nil {
					return nil, &model.FormatError{
						File:   model.FileAttribute,
						Offset: offset + int64(pos),
						Reason: fmt.Sprintf("field %s: invalid decimal %q", f.Name, digits),
					}
				}
			}
			values[i] = model.DecimalValue(v, f.Decimals)
		}

		pos += f.Length
	}

	return values, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
