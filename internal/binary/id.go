package binary

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dyuri/tabconv/internal/model"
)

// indexEntrySize is the width of one .id entry
const indexEntrySize = 4

// ReadSpatialIndex reads the .id file: one little-endian uint32 offset into
// the geometry file per row, 0 meaning the row has no geometry. The file
// must hold exactly count entries.
func ReadSpatialIndex(r io.ReaderAt, size int64, count int) ([]uint32, error) {
	want := int64(count) * indexEntrySize
	if size < want {
		return nil, &model.TruncatedFileError{
			File: model.FileIndex,
			Want: int(want),
			Got:  int(size),
		}
	}
	if size > want {
		return nil, &model.FormatError{
			File:   model.FileIndex,
			Offset: want,
			Reason: fmt.Sprintf("%d trailing bytes after %d entries", size-want, count),
		}
	}

	buf := make([]byte, want)
	if err := readFull(r, model.FileIndex, buf, 0); err != nil {
		return nil, err
	}

	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(buf[i*indexEntrySize:])
	}
	return offsets, nil
}
