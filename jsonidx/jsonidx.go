// Package jsonidx implements a single-pass structural indexer for JSON
// documents: given a byte slice it locates the direct children of the
// top-level value (array elements, or object keys and their values) and
// records each one's (offset, length) in a caller-provided buffer, without
// building any tree or validating anything below the first nesting level.
//
// It is a Go reexpression of js0n, a minimal computed-goto JSON scanner.
// Go has no computed goto, so the jump tables (gostruct, gobare, gostring,
// goutf8_continue, goesc) become an explicit state machine: a small state
// enum dispatched by a switch, with the per-byte transition logic of each
// original table reproduced as a case.
package jsonidx

// state mirrors js0n's five jump tables.
type state int

const (
	stateStruct state = iota
	stateBare
	stateString
	stateEscape
	stateUTF8Continue
)

// Index scans js and writes (offset, length) pairs into out for every value
// directly contained at depth 1 below the root (i.e. the elements of a
// top-level array, or the key/value pairs of a top-level object - the key's
// offset/length is written immediately before its value's). String lengths
// exclude the surrounding quotes. Values nested deeper than depth 1, and the
// root value itself, are walked for bracket/brace balance but never
// produce entries.
//
// n is the number of uint32s written to out. Once out is full, further
// entries are dropped, but the scan still runs to the end of js, so a full
// out is not an error: out holds the first len(out) values and status
// reports on the whole input.
//
// status is 0 if js parsed as a complete, balanced top-level value; a
// positive value is either the 1-based offset of the byte that broke
// parsing (when it is <= len(js)), or otherwise the nesting depth still
// open at the end of truncated input.
// Note that, like the algorithm this is grounded on, depth only tracks
// '{'/'[' nesting: an unterminated bare string ("abc with no closing
// quote) at depth 0 is not distinguished from a complete parse.
func Index(js []byte, out []uint32) (n int, status int) {
	depth := 0
	utf8Remain := 0
	var prev uint32
	st := stateStruct

	i := 0
	for i < len(js) {
		c := js[i]

		switch st {
		case stateStruct:
			switch {
			case c == '\t' || c == ' ' || c == '\r' || c == '\n' || c == ':' || c == ',':
				i++

			case c == '"':
				if depth == 1 && n < len(out) {
					out[n] = uint32(i + 1)
					prev = out[n]
					n++
				}
				st = stateString
				i++

			case c == '[' || c == '{':
				if depth == 1 && n < len(out) {
					out[n] = uint32(i)
					prev = out[n]
					n++
				}
				depth++
				i++

			case c == ']' || c == '}':
				depth--
				if depth == 1 && n < len(out) {
					out[n] = uint32(i) - prev + 1
					prev = out[n]
					n++
				}
				i++

			case c == '-' || (c >= '0' && c <= '9') || c == 't' || c == 'f' || c == 'n':
				if depth == 1 && n < len(out) {
					out[n] = uint32(i)
					prev = out[n]
					n++
				}
				st = stateBare
				i++

			default:
				return n, i + 1
			}

		case stateBare:
			switch {
			case c == ',' || c == ']' || c == '}' || c == '\t' || c == ' ' || c == '\r' || c == '\n':
				if depth == 1 && n < len(out) {
					out[n] = uint32(i) - prev
					prev = out[n]
					n++
				}
				st = stateStruct
				// same byte is re-dispatched under stateStruct, no advance

			case c >= 0x20 && c <= 0x7E:
				i++

			default:
				return n, i + 1
			}

		case stateString:
			switch {
			case c == '\\':
				st = stateEscape
				i++

			case c == '"':
				if depth == 1 && n < len(out) {
					out[n] = uint32(i) - prev
					prev = out[n]
					n++
				}
				st = stateStruct
				i++

			case c >= 0x20 && c <= 0x7F:
				i++

			case c >= 0xC0 && c <= 0xDF:
				utf8Remain = 1
				st = stateUTF8Continue
				i++

			case c >= 0xE0 && c <= 0xEF:
				utf8Remain = 2
				st = stateUTF8Continue
				i++

			case c >= 0xF0 && c <= 0xF7:
				utf8Remain = 3
				st = stateUTF8Continue
				i++

			default:
				return n, i + 1
			}

		case stateEscape:
			switch c {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				st = stateString
				i++
			default:
				return n, i + 1
			}

		case stateUTF8Continue:
			if c >= 0x80 && c <= 0xBF {
				utf8Remain--
				if utf8Remain == 0 {
					st = stateString
				}
				i++
			} else {
				return n, i + 1
			}
		}
	}

	return n, depth
}
