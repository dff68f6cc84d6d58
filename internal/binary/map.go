package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/dyuri/tabconv/internal/model"
	"github.com/go-spatial/geom"
)

const (
	// MapMagic is stored at offset 256 of every .map file
	MapMagic = 42424242

	// MapHeaderSize is the size of the version 300-500 header block
	MapHeaderSize = 512

	// BlockTypeODB tags an object data block
	BlockTypeODB = 0x02

	// ObjectShortPoint is the object type of a point stored relative to
	// its block origin
	ObjectShortPoint = 0x01

	originHeaderSize = 12
	shortPointSize   = 9
)

// BlockIndex records which blocks of the geometry file are object data blocks
type BlockIndex struct {
	odb    *roaring.Bitmap
	blocks int
}

// Contains reports whether block i is an object data block
func (b *BlockIndex) Contains(i int) bool {
	return i >= 0 && uint64(i) <= math.MaxUint32 && b.odb.Contains(uint32(i))
}

// Blocks returns the number of full blocks scanned
func (b *BlockIndex) Blocks() int {
	return b.blocks
}

// ODBCount returns the number of object data blocks
func (b *BlockIndex) ODBCount() int {
	return int(b.odb.GetCardinality())
}

// GeometryReader decodes point objects from the .map file
type GeometryReader struct {
	r      io.ReaderAt
	size   int64
	endian binary.ByteOrder
	header *model.MapHeader
	blocks *BlockIndex
}

// NewGeometryReader creates a new geometry file reader
func NewGeometryReader(r io.ReaderAt, size int64) *GeometryReader {
	return &GeometryReader{
		r:      r,
		size:   size,
		endian: binary.LittleEndian,
	}
}

// Parse reads the header, scans the blocks and decodes one feature per
// offset. Rows with unsupported object types get no geometry; their
// *model.UnsupportedGeometryError is returned in warnings.
func (r *GeometryReader) Parse(offsets []uint32) ([]model.Feature, []error, error) {
	if _, err := r.ReadHeader(); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if _, err := r.ScanBlocks(); err != nil {
		return nil, nil, fmt.Errorf("scan blocks: %w", err)
	}

	var warnings []error
	features := make([]model.Feature, len(offsets))
	for row, offset := range offsets {
		f, err := r.ReadFeature(row, offset)
		if err != nil {
			var unsupported *model.UnsupportedGeometryError
			if !errors.As(err, &unsupported) {
				return nil, nil, err
			}
			warnings = append(warnings, err)
		}
		features[row] = f
	}

	return features, warnings, nil
}

// Header returns the parsed header, or nil before ReadHeader
func (r *GeometryReader) Header() *model.MapHeader {
	return r.header
}

// BlockIndex returns the block classification, or nil before ScanBlocks
func (r *GeometryReader) BlockIndex() *BlockIndex {
	return r.blocks
}

// ReadHeader parses the fixed header block
func (r *GeometryReader) ReadHeader() (*model.MapHeader, error) {
	buf := make([]byte, MapHeaderSize)
	if err := readFull(r.r, model.FileGeometry, buf, 0); err != nil {
		return nil, err
	}

	if magic := int32(r.endian.Uint32(buf[256:260])); magic != MapMagic {
		return nil, &model.FormatError{
			File:   model.FileGeometry,
			Offset: 256,
			Reason: fmt.Sprintf("magic number %d, want %d", magic, MapMagic),
		}
	}

	h := &model.MapHeader{
		Version:             int(int16(r.endian.Uint16(buf[260:262]))),
		BlockSize:           int(r.endian.Uint16(buf[262:264])),
		CoordSysToDistUnits: r.float64At(buf, 264),

		MinX: int32(r.endian.Uint32(buf[272:276])),
		MinY: int32(r.endian.Uint32(buf[276:280])),
		MaxX: int32(r.endian.Uint32(buf[280:284])),
		MaxY: int32(r.endian.Uint32(buf[284:288])),

		ObjectOffset:   int32(r.endian.Uint32(buf[304:308])),
		DeletedOffset:  int32(r.endian.Uint32(buf[308:312])),
		ResourceOffset: int32(r.endian.Uint32(buf[312:316])),

		DistanceUnits:   buf[350],
		IndexType:       buf[351],
		CoordPrecision:  buf[352],
		CoordOriginCode: buf[353],
		ReflectAxisCode: buf[354],

		ProjectionType: buf[365],
		Datum:          buf[366],
		CoordUnits:     buf[367],

		XScale:  r.float64At(buf, 368),
		YScale:  r.float64At(buf, 376),
		XOffset: r.float64At(buf, 384),
		YOffset: r.float64At(buf, 392),
	}
	for i := range h.ProjectionParam {
		h.ProjectionParam[i] = r.float64At(buf, 400+8*i)
	}
	for i := range h.DatumShift {
		h.DatumShift[i] = r.float64At(buf, 448+8*i)
	}

	if h.BlockSize <= 0 {
		return nil, &model.FormatError{File: model.FileGeometry, Offset: 262, Reason: "block size is zero"}
	}
	if h.XScale == 0 || h.YScale == 0 {
		return nil, &model.FormatError{File: model.FileGeometry, Offset: 368, Reason: "coordinate scale is zero"}
	}

	h.XQuadrant, h.YQuadrant = Quadrant(h.CoordOriginCode)
	h.Bounds = geom.NewExtent(
		[2]float64{
			Transform(h.MinX, 0, h.XOffset, h.XScale, h.XQuadrant),
			Transform(h.MinY, 0, h.YOffset, h.YScale, h.YQuadrant),
		},
		[2]float64{
			Transform(h.MaxX, 0, h.XOffset, h.XScale, h.XQuadrant),
			Transform(h.MaxY, 0, h.YOffset, h.YScale, h.YQuadrant),
		},
	)

	r.header = h
	return h, nil
}

// ScanBlocks reads the file in BlockSize chunks from offset 0 until a short
// read and records every chunk whose first byte is BlockTypeODB.
// ReadHeader must be called first.
func (r *GeometryReader) ScanBlocks() (*BlockIndex, error) {
	if r.header == nil {
		return nil, fmt.Errorf("scan blocks: header not read")
	}

	idx := &BlockIndex{odb: roaring.New()}
	sr := io.NewSectionReader(r.r, 0, r.size)
	block := make([]byte, r.header.BlockSize)

	for {
		_, err := io.ReadFull(sr, block)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read block %d: %w", idx.blocks, err)
		}
		if block[0] == BlockTypeODB {
			idx.odb.Add(uint32(idx.blocks))
		}
		idx.blocks++
	}

	r.blocks = idx
	return idx, nil
}

// ReadFeature decodes the object referenced by one index entry.
// A zero offset yields a feature without geometry and no read.
func (r *GeometryReader) ReadFeature(row int, offset uint32) (model.Feature, error) {
	f := model.Feature{RowID: row}
	if offset == 0 {
		return f, nil
	}
	if r.header == nil || r.blocks == nil {
		return f, fmt.Errorf("read feature: header and blocks must be read first")
	}

	tag := make([]byte, 1)
	if err := readFull(r.r, model.FileGeometry, tag, int64(offset)); err != nil {
		return f, fmt.Errorf("row %d: %w", row, err)
	}

	switch tag[0] {
	case ObjectShortPoint:
		pt, err := r.readShortPoint(row, int64(offset))
		if err != nil {
			return f, err
		}
		f.Point = pt
		return f, nil
	default:
		return f, &model.UnsupportedGeometryError{Row: row, Offset: int64(offset), Type: tag[0]}
	}
}

// readShortPoint decodes a short point object and resolves its origin
// from the enclosing object data block
func (r *GeometryReader) readShortPoint(row int, offset int64) (*model.Point, error) {
	buf := make([]byte, shortPointSize)
	if err := readFull(r.r, model.FileGeometry, buf, offset+1); err != nil {
		return nil, fmt.Errorf("row %d: %w", row, err)
	}

	rowCheck := int32(r.endian.Uint32(buf[0:4]))
	dx := int16(r.endian.Uint16(buf[4:6]))
	dy := int16(r.endian.Uint16(buf[6:8]))
	symbol := buf[8]

	if int64(rowCheck) != int64(row)+1 {
		return nil, &model.RecordConsistencyError{
			Row:    row,
			Offset: offset,
			Reason: fmt.Sprintf("object row id %d, want %d", rowCheck, row+1),
		}
	}

	block := int(offset / int64(r.header.BlockSize))
	if !r.blocks.Contains(block) {
		return nil, &model.RecordConsistencyError{
			Row:    row,
			Offset: offset,
			Reason: fmt.Sprintf("enclosing block %d is not an object data block", block),
		}
	}

	origin, err := r.ReadOriginHeader(block)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", row, err)
	}

	h := r.header
	return &model.Point{
		Point: geom.Point{
			Transform(int32(dx), origin.BaseX, h.XOffset, h.XScale, h.XQuadrant),
			Transform(int32(dy), origin.BaseY, h.YOffset, h.YScale, h.YQuadrant),
		},
		Symbol: symbol,
	}, nil
}

// ReadOriginHeader reads the 12-byte header at the start of an object data block
func (r *GeometryReader) ReadOriginHeader(block int) (model.OriginHeader, error) {
	offset := int64(block) * int64(r.header.BlockSize)
	buf := make([]byte, originHeaderSize)
	if err := readFull(r.r, model.FileGeometry, buf, offset); err != nil {
		return model.OriginHeader{}, err
	}

	o := model.OriginHeader{
		Tag:       buf[0],
		Link:      buf[1],
		UsedBytes: int16(r.endian.Uint16(buf[2:4])),
		BaseX:     int32(r.endian.Uint32(buf[4:8])),
		BaseY:     int32(r.endian.Uint32(buf[8:12])),
	}
	if o.Tag != BlockTypeODB {
		return o, &model.RecordConsistencyError{
			Row:    -1,
			Offset: offset,
			Reason: fmt.Sprintf("block %d has type 0x%02x, want object data block", block, o.Tag),
		}
	}
	return o, nil
}

func (r *GeometryReader) float64At(buf []byte, off int) float64 {
	return math.Float64frombits(r.endian.Uint64(buf[off : off+8]))
}
