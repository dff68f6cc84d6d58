// Package testutil builds table fixtures (.tab, .dat, .id, .map) for tests.
package testutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dyuri/tabconv/internal/model"
)

// Fixture layout constants
const (
	DefaultBlockSize = 512
	MapMagic         = 42424242
)

// Field is a column of a fixture table
type Field struct {
	Name     string
	Kind     model.FieldKind
	Width    int  // Char and Decimal width
	Decimals int  // Decimal places
	Tag      byte // dBase tag written to the .dat descriptor, 0 for the default
}

// Row is one attribute record. Values are string, int or float64 in field order.
type Row struct {
	Deleted bool
	Values  []interface{}
}

// Point is the object stored for one row in the geometry file
type Point struct {
	DX, DY       int16
	Symbol       byte
	BaseX, BaseY int32
	Type         byte  // object type, 0 means short point
	RowCheck     int32 // stored row id, 0 means row+1
}

// Table describes a complete four-file fixture
type Table struct {
	Version    int
	Charset    string
	Fields     []Field
	Rows       []Row
	Points     map[int]Point // row id -> object, rows without entry have offset 0
	OriginCode byte
	XScale     float64
	YScale     float64
	XOffset    float64
	YOffset    float64
	BlockSize  int
	Magic      int32 // 0 means MapMagic
	NoIndex    bool  // do not write the .id file
}

// SampleTable returns three live rows and one deleted row with a
// NAME Char(20), VALUE Decimal(10,2), COUNT Integer schema.
func SampleTable() Table {
	return Table{
		Charset: "WindowsLatin1",
		Fields: []Field{
			{Name: "NAME", Kind: model.KindText, Width: 20},
			{Name: "VALUE", Kind: model.KindDecimal, Width: 10, Decimals: 2},
			{Name: "COUNT", Kind: model.KindInteger},
		},
		Rows: []Row{
			{Values: []interface{}{"Alpha", 1.5, 10}},
			{Deleted: true, Values: []interface{}{"Gone", 0.0, 0}},
			{Values: []interface{}{"Gamma", 22.25, -3}},
			{Values: []interface{}{"Delta", 100.0, 7}},
		},
		Points: map[int]Point{
			0: {DX: 100, DY: 50, Symbol: 35, BaseX: 1000, BaseY: 2000},
			1: {DX: 1, DY: 1, Symbol: 1, BaseX: 1, BaseY: 1},
			3: {DX: -20, DY: 40, Symbol: 36, BaseX: 5000, BaseY: 6000},
		},
		OriginCode: 1,
	}
}

func (t Table) blockSize() int {
	if t.BlockSize == 0 {
		return DefaultBlockSize
	}
	return t.BlockSize
}

func (t Table) width(f Field) int {
	if f.Kind == model.KindInteger {
		return model.IntegerWidth
	}
	return f.Width
}

// TabText renders the .tab header
func (t Table) TabText() string {
	version := t.Version
	if version == 0 {
		version = 300
	}
	var b strings.Builder
	fmt.Fprintf(&b, "!table\r\n!version %d\r\n!charset %s\r\n\r\n", version, t.Charset)
	fmt.Fprintf(&b, "Definition Table\r\n  Type NATIVE Charset %q\r\n  Fields %d\r\n", t.Charset, len(t.Fields))
	for _, f := range t.Fields {
		switch f.Kind {
		case model.KindText:
			fmt.Fprintf(&b, "    %s Char (%d) ;\r\n", f.Name, f.Width)
		case model.KindDecimal:
			fmt.Fprintf(&b, "    %s Decimal (%d, %d) ;\r\n", f.Name, f.Width, f.Decimals)
		case model.KindInteger:
			fmt.Fprintf(&b, "    %s Integer ;\r\n", f.Name)
		}
	}
	return b.String()
}

// DatBytes renders the dBase attribute file
func (t Table) DatBytes() []byte {
	le := binary.LittleEndian
	headerLen := 32 + 32*len(t.Fields) + 1
	recLen := 1
	for _, f := range t.Fields {
		recLen += t.width(f)
	}

	buf := make([]byte, headerLen, headerLen+recLen*len(t.Rows)+1)
	buf[0] = 0x03
	buf[1] = 126 // 2026
	buf[2] = 10
	buf[3] = 16
	le.PutUint32(buf[4:], uint32(len(t.Rows)))
	le.PutUint16(buf[8:], uint16(headerLen))
	le.PutUint16(buf[10:], uint16(recLen))

	for i, f := range t.Fields {
		d := buf[32+32*i : 64+32*i]
		copy(d[:11], f.Name)
		d[11] = f.Tag
		if d[11] == 0 {
			d[11] = 'C'
			if f.Kind == model.KindDecimal {
				d[11] = 'N'
			}
		}
		d[16] = byte(t.width(f))
		d[17] = byte(f.Decimals)
	}
	buf[headerLen-1] = 0x0D

	for _, row := range t.Rows {
		rec := make([]byte, recLen)
		rec[0] = ' '
		if row.Deleted {
			rec[0] = '*'
		}
		pos := 1
		for i, f := range t.Fields {
			w := t.width(f)
			switch f.Kind {
			case model.KindText:
				copy(rec[pos:pos+w], row.Values[i].(string))
			case model.KindInteger:
				le.PutUint32(rec[pos:], uint32(int32(row.Values[i].(int))))
			case model.KindDecimal:
				s := strconv.FormatFloat(row.Values[i].(float64), 'f', f.Decimals, 64)
				copy(rec[pos:pos+w], fmt.Sprintf("%*s", w, s))
			}
			pos += w
		}
		buf = append(buf, rec...)
	}

	return append(buf, 0x1A)
}

// MapBytes renders the geometry file and the matching index offsets.
// Block 0 holds the header; each point gets its own object data block.
func (t Table) MapBytes() ([]byte, []uint32) {
	le := binary.LittleEndian
	bs := t.blockSize()
	offsets := make([]uint32, len(t.Rows))

	buf := make([]byte, bs)
	magic := t.Magic
	if magic == 0 {
		magic = MapMagic
	}
	le.PutUint32(buf[256:], uint32(magic))
	le.PutUint16(buf[260:], 300)
	le.PutUint16(buf[262:], uint16(bs))
	le.PutUint64(buf[264:], math.Float64bits(1))
	le.PutUint32(buf[304:], uint32(bs))
	buf[353] = t.OriginCode
	le.PutUint64(buf[368:], math.Float64bits(orOne(t.XScale)))
	le.PutUint64(buf[376:], math.Float64bits(orOne(t.YScale)))
	le.PutUint64(buf[384:], math.Float64bits(t.XOffset))
	le.PutUint64(buf[392:], math.Float64bits(t.YOffset))

	for row := range t.Rows {
		p, ok := t.Points[row]
		if !ok {
			continue
		}
		block := make([]byte, bs)
		start := len(buf)
		block[0] = 0x02
		le.PutUint16(block[2:], 22)
		le.PutUint32(block[4:], uint32(p.BaseX))
		le.PutUint32(block[8:], uint32(p.BaseY))

		obj := block[12:]
		if p.Type != 0 && p.Type != 0x01 {
			obj[0] = p.Type
		} else {
			check := p.RowCheck
			if check == 0 {
				check = int32(row + 1)
			}
			obj[0] = 0x01
			le.PutUint32(obj[1:], uint32(check))
			le.PutUint16(obj[5:], uint16(p.DX))
			le.PutUint16(obj[7:], uint16(p.DY))
			obj[9] = p.Symbol
		}

		offsets[row] = uint32(start + 12)
		buf = append(buf, block...)
	}

	return buf, offsets
}

// IDBytes renders the spatial index file
func IDBytes(offsets []uint32) []byte {
	buf := make([]byte, 4*len(offsets))
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(buf[4*i:], off)
	}
	return buf
}

// Write stores the fixture as name.tab, name.dat, name.id and name.map in
// dir and returns the path of the .tab file.
func (t Table) Write(dir, name string) (string, error) {
	base := filepath.Join(dir, name)
	mapData, offsets := t.MapBytes()

	files := map[string][]byte{
		".tab": []byte(t.TabText()),
		".dat": t.DatBytes(),
		".map": mapData,
	}
	if !t.NoIndex {
		files[".id"] = IDBytes(offsets)
	}

	for ext, data := range files {
		if err := os.WriteFile(base+ext, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", ext, err)
		}
	}
	return base + ".tab", nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
