package model

import (
	"github.com/go-spatial/geom"
)

// MapHeader contains the file-wide parameters of the geometry file.
// Projection and datum values are carried through without interpretation.
type MapHeader struct {
	Version             int
	BlockSize           int
	CoordSysToDistUnits float64

	// Bounding box in raw integer coordinates
	MinX, MinY, MaxX, MaxY int32

	ObjectOffset   int32 // First object index block
	DeletedOffset  int32 // First deleted block
	ResourceOffset int32 // First resource block

	DistanceUnits   uint8
	IndexType       uint8
	CoordPrecision  uint8
	CoordOriginCode uint8 // Quadrant code
	ReflectAxisCode uint8

	ProjectionType  uint8
	Datum           uint8
	CoordUnits      uint8
	ProjectionParam [6]float64
	DatumShift      [3]float64

	XScale, YScale   float64
	XOffset, YOffset float64

	XQuadrant, YQuadrant float64 // ±1 derived from CoordOriginCode

	Bounds *geom.Extent // Bounding box in table coordinates
}

// OriginHeader is the 12-byte header of an object data block
type OriginHeader struct {
	Tag       uint8
	Link      uint8
	UsedBytes int16
	BaseX     int32
	BaseY     int32
}

// Point is a decoded short point object in table coordinates
type Point struct {
	geom.Point
	Symbol uint8 // MapInfo 3.0 symbol index
}

// Feature is the geometry of one row. Point is nil when the row has none.
type Feature struct {
	RowID int
	Point *Point
}

// HasGeometry reports whether the row carries a decoded point
func (f Feature) HasGeometry() bool {
	return f.Point != nil
}

// Row joins a live attribute record with its geometry
type Row struct {
	AttributeRecord
	Geometry *Point
}
