package printing

import (
	"bytes"
	"testing"
)

func TestEncodeCP852(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{name: "ascii", in: "Kc 10", want: []byte("Kc 10")},
		{name: "czech letters", in: "Kč ř", want: []byte{'K', 0x9f, ' ', 0xfd}},
		{name: "transliterated", in: "ŵ", want: []byte("w")},
		{name: "unknown", in: "€", want: []byte("?")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeCP852(tt.in); !bytes.Equal(got, tt.want) {
				t.Errorf("expected % x, got % x", tt.want, got)
			}
		})
	}
}

func TestDocument(t *testing.T) {
	t.Run("starts with init and code page", func(t *testing.T) {
		got := NewDocument(32).Bytes()
		want := []byte{0x1b, '@', 0x1b, 't', 18}
		if !bytes.Equal(got, want) {
			t.Errorf("expected % x, got % x", want, got)
		}
	})

	t.Run("left right pads to width", func(t *testing.T) {
		d := &Document{width: 12}
		d.LeftRight("2x @ 5", "10 Kč")
		if got := d.buf.String(); got != "2x @ 5 10 K\x9f\n" {
			t.Errorf("unexpected line %q", got)
		}
	})

	t.Run("left right wraps when too long", func(t *testing.T) {
		d := &Document{width: 8}
		d.LeftRight("abcdefg", "xyz")
		if got := d.buf.String(); got != "abcdefg\n     xyz\n" {
			t.Errorf("unexpected lines %q", got)
		}
	})

	t.Run("cut", func(t *testing.T) {
		d := &Document{width: 8}
		d.Cut()
		if !bytes.Equal(d.Bytes(), []byte{0x1d, 0x56, 0x41, 0x03}) {
			t.Errorf("unexpected cut % x", d.Bytes())
		}
	})

	t.Run("feed then cut", func(t *testing.T) {
		d := &Document{width: 8}
		d.Feed(3).Cut()
		want := []byte{0x1b, 'd', 3, 0x1d, 'V', 'A', 3}
		if !bytes.Equal(d.Bytes(), want) {
			t.Errorf("unexpected bytes % x", d.Bytes())
		}
	})
}
