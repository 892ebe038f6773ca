// Package printing renders receipts as ESC/POS and delivers them to network thermal printers.
package printing

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/bakehouse/ordering/internal/textnorm"
)

const (
	esc = 0x1b
	gs  = 0x1d

	// codePagePC852 is the ESC t table number of PC852 (Latin-2) on Epson compatible printers.
	codePagePC852 = 18
)

type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// Document accumulates ESC/POS commands. Text is encoded to CP852.
type Document struct {
	buf   bytes.Buffer
	width int
}

// NewDocument starts a document for a printer with width characters per line.
func NewDocument(width int) *Document {
	d := &Document{width: width}
	d.buf.Write([]byte{esc, '@'})
	d.buf.Write([]byte{esc, 't', codePagePC852})
	return d
}

func (d *Document) Align(a Align) *Document {
	d.buf.Write([]byte{esc, 'a', byte(a)})
	return d
}

func (d *Document) Bold(on bool) *Document {
	var n byte
	if on {
		n = 1
	}
	d.buf.Write([]byte{esc, 'E', n})
	return d
}

func (d *Document) Println(s string) *Document {
	d.buf.Write(EncodeCP852(s))
	d.buf.WriteByte('\n')
	return d
}

// LeftRight prints left and right on one line, padded to the document width.
// When they do not fit, right goes to its own line.
func (d *Document) LeftRight(left, right string) *Document {
	gap := d.width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		d.Println(left)
		return d.Println(strings.Repeat(" ", max(d.width-utf8.RuneCountInString(right), 0)) + right)
	}
	return d.Println(left + strings.Repeat(" ", gap) + right)
}

func (d *Document) Line() *Document {
	return d.Println(strings.Repeat("-", d.width))
}

func (d *Document) Feed(lines int) *Document {
	d.buf.Write([]byte{esc, 'd', byte(lines)})
	return d
}

// Cut feeds the paper to the cutter plus three motion units, then cuts (GS V A 3).
// The feed is in motion units, not lines; use Feed for blank lines.
func (d *Document) Cut() *Document {
	d.buf.Write([]byte{gs, 'V', 'A', 3})
	return d
}

func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}

// EncodeCP852 encodes s for the printer. Runes outside CP852 are replaced by their
// unaccented form, or '?' when there is none.
func EncodeCP852(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.CodePage852.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		for _, fr := range textnorm.StripMarks(string(r)) {
			if b, ok := charmap.CodePage852.EncodeRune(fr); ok {
				out = append(out, b)
			} else {
				out = append(out, '?')
			}
		}
	}
	return out
}
