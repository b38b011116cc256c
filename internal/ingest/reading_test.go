package ingest

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestWrapReader_Sanitizes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain ascii unchanged",
			input: "name,age,email\nMaria,31,maria@example.com\n",
			want:  "name,age,email\nMaria,31,maria@example.com\n",
		},
		{
			name:  "valid utf8 unchanged",
			input: "Jo\xc3\xa3o,28,joao@example.com", // João
			want:  "Jo\xc3\xa3o,28,joao@example.com",
		},
		{
			name:  "bom stripped",
			input: "\xEF\xBB\xBFname,age,email",
			want:  "name,age,email",
		},
		{
			name:  "latin-1 byte replaced",
			input: "Jo\xe3o,28,x@y.com", // ã as Latin-1
			want:  "Jo?o,28,x@y.com",
		},
		{
			name:  "lone continuation byte replaced",
			input: "abc\xbfdef",
			want:  "abc?def",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "input shorter than bom probe",
			input: "ab",
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(wrapReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("wrapReader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestUTF8Sanitizer_SplitReads feeds a multi-byte rune across read
// boundaries and verifies it survives intact.
func TestUTF8Sanitizer_SplitReads(t *testing.T) {
	input := []byte("abc\xc3\xa3def") // ã split across reads
	r := newUTF8Sanitizer(&chunkedReader{data: input, chunk: 4})

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("split read mangled rune: got %q, want %q", got, input)
	}
}

func TestUTF8Sanitizer_IncompleteAtEOF(t *testing.T) {
	// Truncated 2-byte sequence right at EOF
	got, err := io.ReadAll(newUTF8Sanitizer(strings.NewReader("abc\xc3")))
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	if string(got) != "abc?" {
		t.Errorf("got %q, want %q", got, "abc?")
	}
}

func TestBOMReader_OnlyFirstBytes(t *testing.T) {
	// A BOM sequence later in the stream must not be stripped
	input := "ab\xEF\xBB\xBFcd"
	got, err := io.ReadAll(newBOMReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

// chunkedReader returns at most chunk bytes per Read to exercise boundary
// handling.
type chunkedReader struct {
	data  []byte
	chunk int
	pos   int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(p) {
		n = len(p)
	}
	if c.pos+n > len(c.data) {
		n = len(c.data) - c.pos
	}
	copy(p, c.data[c.pos:c.pos+n])
	c.pos += n
	return n, nil
}
