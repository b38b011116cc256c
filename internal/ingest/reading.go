package ingest

// reading.go wraps the upload stream before CSV parsing. Uploads come from
// whatever spreadsheet tool the user had at hand, so two fixups are applied
// without buffering the whole file:
//
//   - bomReader strips the UTF-8 BOM (0xEF 0xBB 0xBF) Windows tools prepend
//   - utf8Sanitizer replaces invalid UTF-8 bytes so the CSV reader never
//     chokes on Latin-1 leftovers

import (
	"io"
	"unicode/utf8"
)

// wrapReader applies BOM skipping then UTF-8 sanitization. The BOM must go
// first: a sanitized BOM is no longer recognizable.
func wrapReader(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMReader(r))
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly. A one-byte
// replacement keeps the output no larger than the input, so sanitization can
// happen in place in the read buffer.
type utf8Sanitizer struct {
	reader io.Reader

	// pending holds trailing bytes that may start a multi-byte sequence
	// split across read boundaries.
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	// Fast path: most CSV data is pure ASCII.
	if isAllASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place, replacing invalid bytes. Unless atEOF,
// an incomplete trailing sequence is carried over to the next Read instead
// of being mangled.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && read+size >= len(data) && isIncompleteRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
		} else {
			copy(data[write:], data[read:read+size])
			write += size
			read += size
		}
	}
	return write
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// incompleteTrailingBytes returns how many bytes at the end of data could be
// the start of an unfinished multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0 // continuation byte
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func isIncompleteRune(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return runeLen(data[0]) > len(data)
}

// bomReader skips a leading UTF-8 BOM if present.
type bomReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	bufData    []byte
	bufOffset  int
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{reader: r}
}

// Read implements io.Reader. The first call peeks three bytes; if they are
// the BOM they are dropped, otherwise they are replayed before the rest of
// the stream.
func (r *bomReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if n == 0 {
			return 0, err
		}

		if n >= 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			r.bufData = nil
		} else {
			r.bufData = r.buf[:n]
			r.bufOffset = 0
		}

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if len(r.bufData) > 0 {
			copied := copy(p, r.bufData[r.bufOffset:])
			r.bufOffset += copied
			if r.bufOffset >= len(r.bufData) {
				r.bufData = nil
			}
			if copied < len(p) && err != io.EOF {
				n, err2 := r.reader.Read(p[copied:])
				return copied + n, err2
			}
			return copied, err
		}
	}

	if len(r.bufData) > r.bufOffset {
		copied := copy(p, r.bufData[r.bufOffset:])
		r.bufOffset += copied
		if r.bufOffset >= len(r.bufData) {
			r.bufData = nil
		}
		return copied, nil
	}

	return r.reader.Read(p)
}
