package binary

import (
	"errors"
	"io"

	"github.com/dyuri/tabconv/internal/model"
)

// readFull reads len(buf) bytes at off. A short read is reported as
// *model.TruncatedFileError for the given file kind.
func readFull(r io.ReaderAt, file string, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &model.TruncatedFileError{File: file, Offset: off, Want: len(buf), Got: n}
	}
	return err
}
