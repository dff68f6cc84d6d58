package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/dyuri/tabconv/internal/model"
	"github.com/dyuri/tabconv/internal/testutil"
)

// countingReader records every ReadAt call
type countingReader struct {
	r     io.ReaderAt
	reads int
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	return c.r.ReadAt(p, off)
}

func newGeometryReader(data []byte) *GeometryReader {
	return NewGeometryReader(bytes.NewReader(data), int64(len(data)))
}

func TestReadMapHeader(t *testing.T) {
	fixture := testutil.SampleTable()
	fixture.OriginCode = 3
	fixture.XScale = 1000
	fixture.YScale = 2000
	fixture.XOffset = 10
	data, _ := fixture.MapBytes()
	minX := int32(-1000)
	binary.LittleEndian.PutUint32(data[272:], uint32(minX))
	binary.LittleEndian.PutUint32(data[284:], 4000)

	h, err := newGeometryReader(data).ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}

	if h.Version != 300 {
		t.Errorf("Version = %d, want 300", h.Version)
	}
	if h.BlockSize != 512 {
		t.Errorf("BlockSize = %d, want 512", h.BlockSize)
	}
	if h.CoordSysToDistUnits != 1 {
		t.Errorf("CoordSysToDistUnits = %v, want 1", h.CoordSysToDistUnits)
	}
	if h.ObjectOffset != 512 {
		t.Errorf("ObjectOffset = %d, want 512", h.ObjectOffset)
	}
	if h.XScale != 1000 || h.YScale != 2000 || h.XOffset != 10 || h.YOffset != 0 {
		t.Errorf("scale/offset = %v %v %v %v", h.XScale, h.YScale, h.XOffset, h.YOffset)
	}
	if h.XQuadrant != -1 || h.YQuadrant != -1 {
		t.Errorf("quadrant = (%v, %v), want (-1, -1)", h.XQuadrant, h.YQuadrant)
	}
	if h.MinX != -1000 || h.MaxY != 4000 {
		t.Errorf("MBR = %d..%d, want -1000..4000", h.MinX, h.MaxY)
	}
	// x: -(-1000+10)/1000 = 0.99 and -(0+10)/1000 = -0.01
	if h.Bounds.MinX() != -0.01 || h.Bounds.MaxX() != 0.99 {
		t.Errorf("Bounds x = %v..%v, want -0.01..0.99", h.Bounds.MinX(), h.Bounds.MaxX())
	}
}

func TestReadMapHeaderBadMagic(t *testing.T) {
	fixture := testutil.SampleTable()
	fixture.Magic = 12345678
	data, offsets := fixture.MapBytes()

	_, _, err := newGeometryReader(data).Parse(offsets)
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
	if fe.Offset != 256 {
		t.Errorf("Offset = %d, want 256", fe.Offset)
	}
}

func TestReadMapHeaderTruncated(t *testing.T) {
	_, err := newGeometryReader(make([]byte, 300)).ReadHeader()
	var tfe *model.TruncatedFileError
	if !errors.As(err, &tfe) {
		t.Fatalf("error = %v, want *TruncatedFileError", err)
	}
}

func TestScanBlocks(t *testing.T) {
	fixture := testutil.SampleTable()
	data, _ := fixture.MapBytes()
	data = append(data, 0x02, 0x00, 0x00) // partial trailing block is ignored

	reader := newGeometryReader(data)
	if _, err := reader.ReadHeader(); err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	blocks, err := reader.ScanBlocks()
	if err != nil {
		t.Fatalf("ScanBlocks failed: %v", err)
	}

	if blocks.Blocks() != 4 {
		t.Errorf("Blocks = %d, want 4", blocks.Blocks())
	}
	if blocks.ODBCount() != 3 {
		t.Errorf("ODBCount = %d, want 3", blocks.ODBCount())
	}
	for i, want := range []bool{false, true, true, true, false} {
		if blocks.Contains(i) != want {
			t.Errorf("Contains(%d) = %v, want %v", i, !want, want)
		}
	}
	if blocks.Contains(-1) {
		t.Errorf("Contains(-1) = true")
	}
}

func TestParseGeometry(t *testing.T) {
	fixture := testutil.SampleTable()
	fixture.OriginCode = 3
	data, offsets := fixture.MapBytes()

	features, warnings, err := newGeometryReader(data).Parse(offsets)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if len(features) != len(offsets) {
		t.Fatalf("Got %d features, want %d", len(features), len(offsets))
	}

	p := features[0].Point
	if p == nil {
		t.Fatalf("row 0 has no geometry")
	}
	if p.X() != -1100 || p.Y() != -2050 {
		t.Errorf("row 0 = (%v, %v), want (-1100, -2050)", p.X(), p.Y())
	}
	if p.Symbol != 35 {
		t.Errorf("Symbol = %d, want 35", p.Symbol)
	}

	if features[2].HasGeometry() {
		t.Errorf("row 2 has geometry, want none")
	}

	p = features[3].Point
	if p == nil || p.X() != -4980 || p.Y() != -6040 {
		t.Errorf("row 3 = %+v, want (-4980, -6040)", p)
	}
}

func TestZeroOffsetDoesNotRead(t *testing.T) {
	fixture := testutil.SampleTable()
	data, _ := fixture.MapBytes()
	cr := &countingReader{r: bytes.NewReader(data)}
	reader := NewGeometryReader(cr, int64(len(data)))

	if _, err := reader.ReadHeader(); err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if _, err := reader.ScanBlocks(); err != nil {
		t.Fatalf("ScanBlocks failed: %v", err)
	}

	before := cr.reads
	f, err := reader.ReadFeature(5, 0)
	if err != nil {
		t.Fatalf("ReadFeature failed: %v", err)
	}
	if f.HasGeometry() || f.RowID != 5 {
		t.Errorf("feature = %+v, want row 5 without geometry", f)
	}
	if cr.reads != before {
		t.Errorf("ReadFeature issued %d reads for a zero offset", cr.reads-before)
	}
}

func TestUnsupportedGeometryContinues(t *testing.T) {
	fixture := testutil.SampleTable()
	fixture.Points[0] = testutil.Point{Type: 0x07} // not a short point
	data, offsets := fixture.MapBytes()

	features, warnings, err := newGeometryReader(data).Parse(offsets)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if features[0].HasGeometry() {
		t.Errorf("row 0 has geometry, want none")
	}
	if !features[3].HasGeometry() {
		t.Errorf("row 3 lost its geometry")
	}

	if len(warnings) != 1 {
		t.Fatalf("Got %d warnings, want 1", len(warnings))
	}
	var uge *model.UnsupportedGeometryError
	if !errors.As(warnings[0], &uge) {
		t.Fatalf("warning = %v, want *UnsupportedGeometryError", warnings[0])
	}
	if uge.Row != 0 || uge.Type != 0x07 {
		t.Errorf("warning = %+v, want row 0 type 0x07", uge)
	}
}

func TestRowCheckMismatch(t *testing.T) {
	fixture := testutil.SampleTable()
	p := fixture.Points[3]
	p.RowCheck = 99
	fixture.Points[3] = p
	data, offsets := fixture.MapBytes()

	_, _, err := newGeometryReader(data).Parse(offsets)
	var rce *model.RecordConsistencyError
	if !errors.As(err, &rce) {
		t.Fatalf("error = %v, want *RecordConsistencyError", err)
	}
	if rce.Row != 3 {
		t.Errorf("Row = %d, want 3", rce.Row)
	}
}

func TestShortPointOutsideODB(t *testing.T) {
	fixture := testutil.SampleTable()
	data, offsets := fixture.MapBytes()
	data[512] = 0x05 // block 1 is no longer an object data block

	_, _, err := newGeometryReader(data).Parse(offsets)
	var rce *model.RecordConsistencyError
	if !errors.As(err, &rce) {
		t.Fatalf("error = %v, want *RecordConsistencyError", err)
	}
	if rce.Row != 0 {
		t.Errorf("Row = %d, want 0", rce.Row)
	}
}

func TestOffsetPastEndOfFile(t *testing.T) {
	fixture := testutil.SampleTable()
	data, offsets := fixture.MapBytes()
	offsets[2] = uint32(len(data) + 100)

	_, _, err := newGeometryReader(data).Parse(offsets)
	var tfe *model.TruncatedFileError
	if !errors.As(err, &tfe) {
		t.Fatalf("error = %v, want *TruncatedFileError", err)
	}
}
