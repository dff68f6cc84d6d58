package text

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dyuri/tabconv/internal/model"
)

var (
	versionRe = regexp.MustCompile(`^!version (\d+)$`)
	charsetRe = regexp.MustCompile(`^!charset ([\w-]+)$`)
	fieldsRe  = regexp.MustCompile(`^Fields\s+(\d+)$`)

	// NAME Type [(w[,d])] [Index n] ;
	fieldRe = regexp.MustCompile(`^(\S+)\s+([A-Za-z]+)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?(?:\s+(?i:index)\s+(\d+))?\s*;$`)
)

// Maximum width of a dBase column
const maxFieldWidth = 254

// SchemaReader parses the textual table header (.tab file)
type SchemaReader struct {
	scanner *bufio.Scanner
	line    int
	codecs  CodecTable
}

// NewSchemaReader creates a header reader that resolves charsets with codecs
func NewSchemaReader(r io.Reader, codecs CodecTable) *SchemaReader {
	return &SchemaReader{
		scanner: bufio.NewScanner(r),
		codecs:  codecs,
	}
}

// Read parses the header and returns the field schema and the codec
// for attribute strings.
func (r *SchemaReader) Read() (*model.TableSchema, Codec, error) {
	schema := model.NewTableSchema()

	line, ok := r.next()
	if !ok || !strings.HasPrefix(line, "!table") {
		return nil, Codec{}, r.errorf(line, "missing !table marker")
	}

	line, ok = r.next()
	m := versionRe.FindStringSubmatch(line)
	if !ok || m == nil {
		return nil, Codec{}, r.errorf(line, "expected \"!version <digits>\"")
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, Codec{}, r.errorf(line, "version out of range")
	}
	schema.Version = version

	line, ok = r.next()
	m = charsetRe.FindStringSubmatch(line)
	if !ok || m == nil {
		return nil, Codec{}, r.errorf(line, "expected \"!charset <name>\"")
	}
	schema.Charset = m[1]
	codec, _ := r.codecs.Lookup(m[1])
	schema.Codec = codec.Name

	count, err := r.readFieldCount()
	if err != nil {
		return nil, Codec{}, err
	}

	for i := 0; i < count; i++ {
		line, ok := r.nextNonEmpty()
		if !ok {
			return nil, Codec{}, &model.SchemaFormatError{
				Line:   r.line,
				Reason: fmt.Sprintf("declared %d fields, found %d", count, i),
			}
		}
		field, err := r.parseField(line)
		if err != nil {
			return nil, Codec{}, err
		}
		if !schema.AddField(field) {
			return nil, Codec{}, r.errorf(line, "duplicate field name %s", field.Name)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, Codec{}, fmt.Errorf("scanner error: %w", err)
	}

	return schema, codec, nil
}

// readFieldCount skips to "Definition Table" and reads the "Fields n" line.
// A "Type ..." line may precede it.
func (r *SchemaReader) readFieldCount() (int, error) {
	for {
		line, ok := r.next()
		if !ok {
			return 0, &model.SchemaFormatError{Line: r.line, Reason: "missing Definition Table"}
		}
		if strings.HasPrefix(strings.TrimSpace(line), "Definition Table") {
			break
		}
	}

	for {
		line, ok := r.nextNonEmpty()
		if !ok {
			return 0, &model.SchemaFormatError{Line: r.line, Reason: "missing Fields declaration"}
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Type ") {
			continue
		}
		m := fieldsRe.FindStringSubmatch(trimmed)
		if m == nil {
			return 0, r.errorf(line, "expected \"Fields <n>\"")
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n == 0 {
			return 0, r.errorf(line, "invalid field count")
		}
		return n, nil
	}
}

// parseField decodes one field definition line
func (r *SchemaReader) parseField(line string) (model.FieldDescriptor, error) {
	m := fieldRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return model.FieldDescriptor{}, r.errorf(line, "malformed field definition")
	}
	name, typeName, width, decimals, index := m[1], m[2], m[3], m[4], m[5]

	f := model.FieldDescriptor{Name: name}

	switch {
	case strings.EqualFold(typeName, "Char"):
		if width == "" || decimals != "" {
			return f, r.errorf(line, "Char requires (width)")
		}
		f.Kind = model.KindText
	case strings.EqualFold(typeName, "Decimal"):
		if width == "" || decimals == "" {
			return f, r.errorf(line, "Decimal requires (width, decimals)")
		}
		f.Kind = model.KindDecimal
	case strings.EqualFold(typeName, "Integer"):
		if width != "" {
			return f, r.errorf(line, "Integer takes no width")
		}
		f.Kind = model.KindInteger
		f.Length = model.IntegerWidth
	default:
		return f, r.errorf(line, "unrecognized field type %s", typeName)
	}

	if width != "" {
		n, err := strconv.Atoi(width)
		if err != nil || n < 1 || n > maxFieldWidth {
			return f, r.errorf(line, "field width out of range")
		}
		f.Length = n
	}
	if decimals != "" {
		d, err := strconv.Atoi(decimals)
		if err != nil || d >= f.Length {
			return f, r.errorf(line, "decimal places out of range")
		}
		f.Decimals = d
	}
	if index != "" {
		n, err := strconv.Atoi(index)
		if err != nil {
			return f, r.errorf(line, "index ordinal out of range")
		}
		f.Index = &n
	}

	return f, nil
}

// next returns the next line without its line terminator
func (r *SchemaReader) next() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	r.line++
	return strings.TrimRight(r.scanner.Text(), "\r\n\t "), true
}

func (r *SchemaReader) nextNonEmpty() (string, bool) {
	for {
		line, ok := r.next()
		if !ok {
			return "", false
		}
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
}

func (r *SchemaReader) errorf(line, format string, args ...interface{}) error {
	return &model.SchemaFormatError{Line: r.line, Text: line, Reason: fmt.Sprintf(format, args...)}
}
