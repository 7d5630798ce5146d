// Package encoding normalises uploaded bank statements to UTF-8.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Charset names what Detect found.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF8BOM     Charset = "UTF-8 BOM"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Windows1252 Charset = "windows-1252"
	ISO88599    Charset = "ISO-8859-9"
)

// decoders maps chardet results onto the charsets we decode.
var decoders = map[string]Charset{
	"ISO-8859-1":   Windows1252,
	"windows-1252": Windows1252,
	"ISO-8859-9":   ISO88599,
}

// Detect guesses the charset of a statement prefix: BOM first, then UTF-8
// validity, then chardet, falling back to windows-1252.
func Detect(prefix []byte) Charset {
	switch {
	case bytes.HasPrefix(prefix, bomUTF8):
		return UTF8BOM
	case bytes.HasPrefix(prefix, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(prefix, bomUTF16BE):
		return UTF16BE
	case utf8.Valid(prefix):
		return UTF8
	}

	result, err := chardet.NewTextDetector().DetectBest(prefix)
	if err == nil {
		if result.Charset == "UTF-8" {
			return UTF8
		}

		if cs, ok := decoders[result.Charset]; ok {
			return cs
		}
	}

	return Windows1252
}

func (c Charset) decoder() encoding.Encoding {
	switch c {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case ISO88599:
		return charmap.ISO8859_9
	case Windows1252:
		return charmap.Windows1252
	}

	return nil
}

// NewUTF8Reader returns r decoded to UTF-8.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	prefix, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	cs := Detect(prefix)

	if cs == UTF8BOM {
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	}

	dec := cs.decoder()
	if dec == nil {
		return br, nil
	}

	return transform.NewReader(br, dec.NewDecoder()), nil
}
