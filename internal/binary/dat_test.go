package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/dyuri/tabconv/internal/model"
	"github.com/dyuri/tabconv/internal/testutil"
	"github.com/dyuri/tabconv/internal/text"
)

func schemaFor(t *testing.T, table testutil.Table) *model.TableSchema {
	t.Helper()
	schema := model.NewTableSchema()
	for _, f := range table.Fields {
		d := model.FieldDescriptor{Name: f.Name, Kind: f.Kind, Length: f.Width, Decimals: f.Decimals}
		if f.Kind == model.KindInteger {
			d.Length = model.IntegerWidth
		}
		if !schema.AddField(d) {
			t.Fatalf("duplicate field %s", f.Name)
		}
	}
	return schema
}

func parseDat(t *testing.T, table testutil.Table, schema *model.TableSchema) (*model.AttributeTable, error) {
	t.Helper()
	data := table.DatBytes()
	reader := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1)
	return reader.Parse()
}

func TestAttributeParse(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)

	table, err := parseDat(t, fixture, schema)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if table.Header.RecordCount != 4 {
		t.Errorf("RecordCount = %d, want 4", table.Header.RecordCount)
	}
	if want := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC); !table.Header.LastModified.Equal(want) {
		t.Errorf("LastModified = %v, want %v", table.Header.LastModified, want)
	}
	if len(table.Records) != 3 {
		t.Fatalf("Got %d records, want 3", len(table.Records))
	}
	if len(table.Deleted) != 1 || table.Deleted[0] != 1 {
		t.Errorf("Deleted = %v, want [1]", table.Deleted)
	}

	wantRows := []int{0, 2, 3}
	for i, rec := range table.Records {
		if rec.RowID != wantRows[i] {
			t.Errorf("record %d RowID = %d, want %d", i, rec.RowID, wantRows[i])
		}
		if len(rec.Values) != schema.NumFields() {
			t.Errorf("record %d has %d values, want %d", i, len(rec.Values), schema.NumFields())
		}
	}

	rec := table.Records[1]
	if v, _ := rec.Get("NAME"); v.Text != "Gamma" {
		t.Errorf("NAME = %q, want Gamma", v.Text)
	}
	if v, _ := rec.Get("COUNT"); v.Kind != model.KindInteger || v.Int != -3 {
		t.Errorf("COUNT = %+v, want Integer -3", v)
	}
	v, _ := rec.Get("VALUE")
	if v.Kind != model.KindDecimal || v.Float != 22.25 {
		t.Errorf("VALUE = %+v, want Decimal 22.25", v)
	}
	if v.String() != "22.25" {
		t.Errorf("VALUE.String() = %q, want 22.25", v.String())
	}
	if v, _ := table.Records[2].Get("VALUE"); v.String() != "100.00" {
		t.Errorf("VALUE.String() = %q, want 100.00", v.String())
	}
}

func TestAttributeFieldCountMismatch(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	schema.AddField(model.FieldDescriptor{Name: "EXTRA", Kind: model.KindInteger, Length: 4})

	_, err := parseDat(t, fixture, schema)
	var sce *model.SchemaConsistencyError
	if !errors.As(err, &sce) {
		t.Fatalf("error = %v, want *SchemaConsistencyError", err)
	}
	if sce.Attribute != "field count" {
		t.Errorf("Attribute = %q, want field count", sce.Attribute)
	}
}

func TestValidateFields(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)

	fields := []FieldHeader{
		{Name: "NAME", Type: 'C', Length: 20},
		{Name: "VALUE", Type: 'N', Length: 10, Decimals: 2},
		{Name: "COUNT", Type: 'C', Length: 4},
	}
	if m := ValidateFields(schema, fields); len(m) != 0 {
		t.Fatalf("ValidateFields = %v, want no mismatches", m)
	}

	fields[0].Name = "OTHER"
	fields[1].Decimals = 3
	fields[2].Type = 'D'
	fields[2].Length = 8

	mismatches := ValidateFields(schema, fields)
	got := map[string]bool{}
	for _, m := range mismatches {
		got[m.Field+"/"+m.Attribute] = true
	}
	for _, want := range []string{"NAME/name", "VALUE/decimals", "COUNT/type", "COUNT/length"} {
		if !got[want] {
			t.Errorf("missing mismatch %s in %v", want, mismatches)
		}
	}
	if len(mismatches) != 4 {
		t.Errorf("Got %d mismatches, want 4", len(mismatches))
	}
}

func TestValidateFieldsTruncatedName(t *testing.T) {
	schema := model.NewTableSchema()
	schema.AddField(model.FieldDescriptor{Name: "Description_Long", Kind: model.KindText, Length: 50})

	fields := []FieldHeader{{Name: "Descriptio", Type: 'C', Length: 50}}
	if m := ValidateFields(schema, fields); len(m) != 0 {
		t.Errorf("ValidateFields = %v, want truncated name accepted", m)
	}
}

func TestAttributeSchemaMismatchFromFile(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	fixture.Fields[0].Width = 30 // .dat says 30, schema says 20

	_, err := parseDat(t, fixture, schema)
	var sce *model.SchemaConsistencyError
	if !errors.As(err, &sce) {
		t.Fatalf("error = %v, want *SchemaConsistencyError", err)
	}
}

func TestAttributeUnknownTypeTag(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	fixture.Fields[2].Tag = 'Z'

	_, err := parseDat(t, fixture, schema)
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
}

func TestAttributeBadTerminator(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	data := fixture.DatBytes()
	data[32+32*3] = 0x00

	_, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
}

func TestAttributeTruncated(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	data := fixture.DatBytes()
	data = data[:len(data)-20]

	_, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
	var tfe *model.TruncatedFileError
	if !errors.As(err, &tfe) {
		t.Fatalf("error = %v, want *TruncatedFileError", err)
	}
}

func TestAttributeBadDeletionFlag(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	data := fixture.DatBytes()
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	data[headerLen] = '?'

	_, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
	if fe.Offset != int64(headerLen) {
		t.Errorf("Offset = %d, want %d", fe.Offset, headerLen)
	}
}

func TestAttributeBlankDecimal(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	data := fixture.DatBytes()
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	// VALUE of the first record starts after the flag and NAME
	copy(data[headerLen+1+20:], "          ")

	table, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v, _ := table.Records[0].Get("VALUE"); v.Float != 0 {
		t.Errorf("VALUE = %v, want 0", v.Float)
	}
}

func TestAttributeDecimalNotDigits(t *testing.T) {
	tests := []string{
		"       NaN",
		"      +Inf",
		"     0x1p3",
		"    1e+300",
		"   1.2.3  ",
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			fixture := testutil.SampleTable()
			schema := schemaFor(t, fixture)
			data := fixture.DatBytes()
			headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
			copy(data[headerLen+1+20:], tt)

			_, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
			var fe *model.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
			if fe.Offset != int64(headerLen+1+20) {
				t.Errorf("Offset = %d, want %d", fe.Offset, headerLen+1+20)
			}
		})
	}
}

func TestAttributeDecimalSigned(t *testing.T) {
	fixture := testutil.SampleTable()
	schema := schemaFor(t, fixture)
	data := fixture.DatBytes()
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	copy(data[headerLen+1+20:], "     -.50 ")

	table, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v, _ := table.Records[0].Get("VALUE"); v.Float != -0.5 {
		t.Errorf("VALUE = %v, want -0.5", v.Float)
	}
}

func TestAttributeInvalidDate(t *testing.T) {
	tests := []struct {
		name       string
		month, day byte
	}{
		{"zero month", 0, 16},
		{"zero day", 10, 0},
		{"month 13", 13, 1},
		{"february 31", 2, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := testutil.SampleTable()
			schema := schemaFor(t, fixture)
			data := fixture.DatBytes()
			data[2] = tt.month
			data[3] = tt.day

			_, err := NewAttributeReader(bytes.NewReader(data), int64(len(data)), schema, text.Latin1).Parse()
			var fe *model.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
			if fe.Offset != 1 {
				t.Errorf("Offset = %d, want 1", fe.Offset)
			}
		})
	}
}
