package text

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Codec decodes strings stored in the attribute file
type Codec struct {
	Name string
	enc  encoding.Encoding
}

// NewCodec wraps an x/text encoding
func NewCodec(name string, enc encoding.Encoding) Codec {
	return Codec{Name: name, enc: enc}
}

// Decode converts raw bytes to a UTF-8 string
func (c Codec) Decode(b []byte) (string, error) {
	if c.enc == nil {
		return string(b), nil
	}
	return c.enc.NewDecoder().String(string(b))
}

// Latin1 is the codec used for unknown charset tokens
var Latin1 = NewCodec("ISO-8859-1", charmap.ISO8859_1)

// CodecTable maps !charset tokens to codecs. Tokens are matched
// case-insensitively. A table is immutable once built.
type CodecTable struct {
	codecs   map[string]Codec
	fallback Codec
}

// NewCodecTable builds a table from token -> codec pairs
func NewCodecTable(fallback Codec, codecs map[string]Codec) CodecTable {
	m := make(map[string]Codec, len(codecs))
	for k, v := range codecs {
		m[strings.ToLower(k)] = v
	}
	return CodecTable{codecs: m, fallback: fallback}
}

// Lookup resolves a charset token. Unknown tokens return the fallback codec
// and false.
func (t CodecTable) Lookup(token string) (Codec, bool) {
	if c, ok := t.codecs[strings.ToLower(token)]; ok {
		return c, true
	}
	if t.fallback.enc == nil && t.fallback.Name == "" {
		return Latin1, false
	}
	return t.fallback, false
}

// Fallback returns the codec used for unknown tokens
func (t CodecTable) Fallback() Codec {
	return t.fallback
}

// DefaultCodecs returns the charset names written by MapInfo Professional.
// Anything else decodes as ISO-8859-1.
func DefaultCodecs() CodecTable {
	return NewCodecTable(Latin1, map[string]Codec{
		"Neutral":          Latin1,
		"ISO8859_1":        Latin1,
		"ISO8859_2":        NewCodec("ISO-8859-2", charmap.ISO8859_2),
		"ISO8859_5":        NewCodec("ISO-8859-5", charmap.ISO8859_5),
		"ISO8859_7":        NewCodec("ISO-8859-7", charmap.ISO8859_7),
		"WindowsLatin1":    NewCodec("Windows-1252", charmap.Windows1252),
		"WindowsLatin2":    NewCodec("Windows-1250", charmap.Windows1250),
		"WindowsCyrillic":  NewCodec("Windows-1251", charmap.Windows1251),
		"WindowsGreek":     NewCodec("Windows-1253", charmap.Windows1253),
		"WindowsTurkish":   NewCodec("Windows-1254", charmap.Windows1254),
		"WindowsHebrew":    NewCodec("Windows-1255", charmap.Windows1255),
		"WindowsArabic":    NewCodec("Windows-1256", charmap.Windows1256),
		"WindowsBalticRim": NewCodec("Windows-1257", charmap.Windows1257),
		"CodePage437":      NewCodec("CP437", charmap.CodePage437),
		"CodePage850":      NewCodec("CP850", charmap.CodePage850),
		"CodePage852":      NewCodec("CP852", charmap.CodePage852),
		"CodePage866":      NewCodec("CP866", charmap.CodePage866),
		"UTF-8":            NewCodec("UTF-8", unicode.UTF8),
		"UTF8":             NewCodec("UTF-8", unicode.UTF8),
	})
}
