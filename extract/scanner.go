// Package extract pulls discrete JSON records out of an otherwise
// unstructured streamed text body, independent of whatever chunk
// boundaries the transport used. Records become available the moment
// their braces balance; prose, whitespace, and separators between
// records are discarded.
package extract

import (
	"bytes"
	"iter"

	"github.com/tidwall/gjson"
)

// Scanner accumulates text increments and surfaces complete records.
// The zero value is ready to use. Not safe for concurrent use; one
// stream owns one Scanner.
//
// Scanning is string-aware: braces inside quoted values (and escaped
// quotes inside those) do not move the depth counter, so a record whose
// payload embeds unbalanced literal braces still parses.
type Scanner struct {
	buf []byte
}

// Feed appends one increment and returns every record it completed, in
// order. A malformed balanced span does not block later records: the
// scan resumes from the next opening brace after the failed start.
func (s *Scanner) Feed(increment string) []gjson.Result {
	s.buf = append(s.buf, increment...)

	var out []gjson.Result
	for {
		start := bytes.IndexByte(s.buf, '{')
		if start < 0 {
			// nothing structural buffered; drop the prose
			s.buf = s.buf[:0]
			return out
		}

		end, complete := scanBalanced(s.buf, start)
		if !complete {
			if start > 0 {
				s.buf = append(s.buf[:0], s.buf[start:]...)
			}
			return out
		}

		span := s.buf[start : end+1]
		if gjson.ValidBytes(span) {
			record := make([]byte, len(span))
			copy(record, span)
			out = append(out, gjson.ParseBytes(record))
			s.buf = append(s.buf[:0], s.buf[end+1:]...)
			continue
		}

		// balanced but unparseable: resume at the next opening brace
		// after the failed start so one bad span cannot wedge the stream
		next := bytes.IndexByte(s.buf[start+1:], '{')
		if next < 0 {
			s.buf = s.buf[:0]
			return out
		}
		s.buf = append(s.buf[:0], s.buf[start+1+next:]...)
	}
}

// Pending reports whether an incomplete record is waiting for more
// input.
func (s *Scanner) Pending() bool {
	return len(s.buf) > 0
}

// scanBalanced walks buf from the opening brace at start to its
// balanced closing brace. Quoted sections are skipped wholesale,
// honoring backslash escapes.
func scanBalanced(buf []byte, start int) (end int, complete bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(buf); i++ {
		c := buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Records lazily resolves a sequence of text increments into records.
// Errors from the source pass through and end the sequence; the partial
// tail of an interrupted record is never surfaced.
func Records(increments iter.Seq2[string, error]) iter.Seq2[gjson.Result, error] {
	return func(yield func(gjson.Result, error) bool) {
		var s Scanner
		for increment, err := range increments {
			if err != nil {
				yield(gjson.Result{}, err)
				return
			}
			for _, record := range s.Feed(increment) {
				if !yield(record, nil) {
					return
				}
			}
		}
	}
}
