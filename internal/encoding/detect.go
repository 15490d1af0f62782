// Package encoding normalises CSV exports to UTF-8. Billing ledgers are often saved from
// spreadsheet tools with a BOM or in a Windows code page.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffSize = 8192

// Charset names reported by Detect.
const (
	CharsetUTF8    = "UTF-8"
	CharsetUTF8BOM = "UTF-8-BOM"
	CharsetUTF16LE = "UTF-16LE"
	CharsetUTF16BE = "UTF-16BE"
	CharsetCP1252  = "windows-1252"
	CharsetLatin5  = "ISO-8859-9"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Detect names the charset of a sample: BOMs first, then UTF-8 validity,
// then chardet, falling back to windows-1252.
func Detect(sample []byte) string {
	switch {
	case bytes.HasPrefix(sample, bomUTF8):
		return CharsetUTF8BOM
	case bytes.HasPrefix(sample, bomUTF16LE):
		return CharsetUTF16LE
	case bytes.HasPrefix(sample, bomUTF16BE):
		return CharsetUTF16BE
	}

	if utf8.Valid(trimPartialRune(sample)) {
		return CharsetUTF8
	}

	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err == nil {
		switch res.Charset {
		case "UTF-8":
			return CharsetUTF8
		case "ISO-8859-9":
			return CharsetLatin5
		}
	}
	return CharsetCP1252
}

// NewUTF8Reader wraps r so reads yield UTF-8. A UTF-8 BOM is dropped.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	sample, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("NewUTF8Reader: peek: %w", err)
	}

	var dec *xencoding.Decoder
	switch Detect(sample) {
	case CharsetUTF8:
		return br, nil
	case CharsetUTF8BOM:
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	case CharsetUTF16LE:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case CharsetUTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	case CharsetLatin5:
		dec = charmap.ISO8859_9.NewDecoder()
	default:
		dec = charmap.Windows1252.NewDecoder()
	}
	return transform.NewReader(br, dec), nil
}

// trimPartialRune drops an incomplete multi-byte sequence cut off at the end of a sample.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}
