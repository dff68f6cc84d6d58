package tabconv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyuri/tabconv/internal/binary"
	"github.com/dyuri/tabconv/internal/model"
	"github.com/dyuri/tabconv/internal/text"
	"github.com/sirupsen/logrus"
)

// Open reads the table whose header is at path. The .dat, .id and .map
// files are located by replacing the extension of path.
//
// Schema and attribute errors abort the load. A missing .id file or an
// unsupported geometry object only removes geometry from the affected
// rows and is reported in Table.Warnings.
func Open(path string, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.WithField("table", path)

	t := &Table{path: path}

	schema, codec, err := readSchema(path, o)
	if err != nil {
		return nil, &Error{Code: "schema", Message: "read schema " + path, Cause: err}
	}
	t.schema, t.codec = schema, codec
	log.WithFields(logrus.Fields{
		"fields":  schema.NumFields(),
		"charset": schema.Charset,
		"codec":   codec.Name,
	}).Debug("parsed schema")

	datPath := companion(path, ".dat")
	attrs, err := readAttributes(datPath, schema, codec)
	if err != nil {
		return nil, &Error{Code: "attributes", Message: "read attribute file " + datPath, Cause: err}
	}
	t.attrs = attrs.Header
	t.deleted = len(attrs.Deleted)
	log.WithFields(logrus.Fields{
		"file":    datPath,
		"records": attrs.Header.RecordCount,
		"deleted": len(attrs.Deleted),
	}).Debug("decoded attribute file")

	idPath := companion(path, ".id")
	offsets, err := readIndex(idPath, attrs.Header.RecordCount)
	switch {
	case errors.Is(err, model.ErrMissingIndexFile):
		t.warnings = append(t.warnings, err)
		log.WithField("file", idPath).Warn("spatial index missing, rows have no geometry")
	case err != nil:
		return nil, &Error{Code: "index", Message: "read index file " + idPath, Cause: err}
	}

	// Deleted rows are not exposed, so their objects are never decoded
	for _, row := range attrs.Deleted {
		if row < len(offsets) {
			offsets[row] = 0
		}
	}

	mapPath := companion(path, ".map")
	features, header, blocks, warnings, err := readGeometry(mapPath, offsets, attrs.Header.RecordCount)
	if err != nil {
		return nil, &Error{Code: "geometry", Message: "read geometry file " + mapPath, Cause: err}
	}
	t.mapHeader = header
	if blocks != nil {
		log.WithFields(logrus.Fields{
			"file":       mapPath,
			"blocks":     blocks.Blocks(),
			"odb_blocks": blocks.ODBCount(),
		}).Debug("decoded geometry file")
	}
	for _, w := range warnings {
		log.WithField("file", mapPath).Warn(w.Error())
	}
	t.warnings = append(t.warnings, warnings...)

	t.rows = make([]model.Row, len(attrs.Records))
	for i, rec := range attrs.Records {
		t.rows[i] = model.Row{AttributeRecord: rec, Geometry: features[rec.RowID].Point}
	}
	log.WithFields(logrus.Fields{
		"rows":     len(t.rows),
		"warnings": len(t.warnings),
	}).Debug("table loaded")

	return t, nil
}

func readSchema(path string, o options) (*model.TableSchema, text.Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, text.Codec{}, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	schema, codec, err := text.NewSchemaReader(f, o.codecs).Read()
	if err != nil {
		return nil, text.Codec{}, err
	}

	if o.charset != "" {
		codec, _ = o.codecs.Lookup(o.charset)
		schema.Codec = codec.Name
	}
	return schema, codec, nil
}

func readAttributes(path string, schema *model.TableSchema, codec text.Codec) (*model.AttributeTable, error) {
	f, size, err := openSized(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return binary.NewAttributeReader(f, size, schema, codec).Parse()
}

// readIndex returns model.ErrMissingIndexFile with all-zero offsets if
// the file does not exist
func readIndex(path string, count int) ([]uint32, error) {
	f, size, err := openSized(path)
	if errors.Is(err, os.ErrNotExist) {
		return make([]uint32, count), model.ErrMissingIndexFile
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return binary.ReadSpatialIndex(f, size, count)
}

// readGeometry decodes one feature per offset. Without a .map file every
// offset must be zero.
func readGeometry(path string, offsets []uint32, count int) ([]model.Feature, *model.MapHeader, *binary.BlockIndex, []error, error) {
	f, size, err := openSized(path)
	if errors.Is(err, os.ErrNotExist) && allZero(offsets) {
		features := make([]model.Feature, count)
		for i := range features {
			features[i].RowID = i
		}
		return features, nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer f.Close()

	reader := binary.NewGeometryReader(f, size)
	features, warnings, err := reader.Parse(offsets)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return features, reader.Header(), reader.BlockIndex(), warnings, nil
}

func openSized(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, stat.Size(), nil
}

// companion returns the sibling of path with extension ext, preferring
// the lower-case name and falling back to an existing upper-case one
func companion(path, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	lower := base + strings.ToLower(ext)
	if _, err := os.Stat(lower); err == nil {
		return lower
	}
	upper := base + strings.ToUpper(ext)
	if _, err := os.Stat(upper); err == nil {
		return upper
	}
	return lower
}

func allZero(offsets []uint32) bool {
	for _, off := range offsets {
		if off != 0 {
			return false
		}
	}
	return true
}
