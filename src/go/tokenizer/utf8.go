package tokenizer

import "bufio"

// utf8Accept and utf8Reject are the two terminal states of the DFA
// below: accept means a complete, valid codepoint was just consumed;
// reject means the byte sequence is not valid UTF-8.
const (
	utf8Accept = 0
	utf8Reject = 1
)

// utf8d is Bjoern Hoehrmann's table-driven UTF-8 decoder DFA.
// Copyright (c) 2008-2009 Bjoern Hoehrmann <bjoern@hoehrmann.de>.
// See http://bjoern.hoehrmann.de/utf-8/decoder/dfa/ for details.
//
// The first 256 entries classify a byte value into one of the DFA's
// character classes; the remainder is the state transition table,
// indexed as utf8d[256 + state*16 + class].
var utf8d = [400]byte{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 00..1f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 20..3f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 40..5f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 60..7f
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, // 80..9f
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, // a0..bf
	8, 8, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, // c0..df
	0xa, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x4, 0x3, 0x3, // e0..ef
	0xb, 0x6, 0x6, 0x6, 0x5, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, // f0..ff
	0x0, 0x1, 0x2, 0x3, 0x5, 0x8, 0x7, 0x1, 0x1, 0x1, 0x4, 0x6, 0x1, 0x1, 0x1, 0x1, // s0..s0
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, // s1..s2
	1, 2, 1, 1, 1, 1, 1, 2, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, // s3..s4
	1, 2, 1, 1, 1, 1, 1, 1, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 3, 1, 3, 1, 1, 1, 1, 1, 1, // s5..s6
	1, 3, 1, 1, 1, 1, 1, 3, 1, 3, 1, 1, 1, 1, 1, 1, 1, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // s7..s8
}

// decodeStep feeds one byte into the DFA, updating state and codep in
// place, and returns the new state (utf8Accept/utf8Reject or an
// intermediate continuation state).
func decodeStep(state *uint32, codep *rune, b byte) uint32 {
	class := utf8d[b]
	if *state != utf8Accept {
		*codep = (rune(b) & 0x3f) | (*codep << 6)
	} else {
		*codep = rune((0xff >> class) & b)
	}
	*state = uint32(utf8d[256+int(*state)*16+int(class)])
	return *state
}

// validateUTF8 runs the DFA over b and returns the terminal state —
// utf8Accept if every byte formed a complete, valid sequence by the
// time b ran out.
func validateUTF8(b []byte) uint32 {
	state := uint32(utf8Accept)
	for _, c := range b {
		class := utf8d[c]
		state = uint32(utf8d[256+int(state)*16+int(class)])
		if state == utf8Reject {
			break
		}
	}
	return state
}

const sniffPrefixLen = 256

// DetectUTF8 sniffs the first 256 bytes available from r (without
// consuming more than that) to decide whether the stream should be
// treated as UTF-8 or raw 8-bit bytes, mirroring file_checkutf. If
// the prefix validates as UTF-8 and begins with a UTF-8 BOM
// (EF BB BF), the BOM is consumed; otherwise nothing is consumed.
func DetectUTF8(r *bufio.Reader) (isUTF8 bool, err error) {
	prefix, _ := r.Peek(sniffPrefixLen)
	if validateUTF8(prefix) != utf8Accept {
		return false, nil
	}
	if len(prefix) >= 3 && prefix[0] == 0xef && prefix[1] == 0xbb && prefix[2] == 0xbf {
		if _, err := r.Discard(3); err != nil {
			return true, err
		}
	}
	return true, nil
}
