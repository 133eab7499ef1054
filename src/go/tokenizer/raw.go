package tokenizer

import (
	"bufio"
	"io"
	"unicode"
)

// DefaultMaxWordLen is the default token buffer size in bytes: a word
// keeps at most DefaultMaxWordLen-1 bytes, and bytes past that are
// silently dropped while the token keeps reading to its natural
// boundary.
const DefaultMaxWordLen = 60

// rawChar is one decoded character plus the raw bytes it came from —
// the raw bytes are what get pushed back onto a lookahead slot,
// mirroring the original's byte-level ungetc without requiring a
// stream that supports pushback (spec.md §9 "Tokenizer push-back").
type rawChar struct {
	r   rune
	raw []byte
}

// RawReader streams whitespace/punctuation-delimited words from a
// byte stream, per spec.md §4.4's raw mode.
type RawReader struct {
	r         *bufio.Reader
	isUTF8    bool
	lookahead *rawChar
}

// NewRawReader wraps r. isUTF8 selects multi-byte decoding; pass the
// result of DetectUTF8.
func NewRawReader(r *bufio.Reader, isUTF8 bool) *RawReader {
	return &RawReader{r: r, isUTF8: isUTF8}
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

// nextChar returns the next decoded character and the raw bytes that
// produced it, consuming the lookahead slot first if set.
func (t *RawReader) nextChar() (rawChar, error) {
	if t.lookahead != nil {
		c := *t.lookahead
		t.lookahead = nil
		return c, nil
	}
	b0, err := t.r.ReadByte()
	if err != nil {
		return rawChar{}, err
	}
	if b0 < 128 || !t.isUTF8 {
		return rawChar{r: rune(b0), raw: []byte{b0}}, nil
	}

	var length int
	switch {
	case b0 < 0xe0:
		length = 2
	case b0 < 0xf0:
		length = 3
	default:
		length = 4
	}
	// The continuation bytes are peeked, not read, so a rejected
	// sequence consumes only b0: the reader then switches to byte mode
	// for the rest of the stream and rereads the following bytes as
	// single-byte characters.
	next, _ := t.r.Peek(length - 1)
	seq := append([]byte{b0}, next...)
	var state uint32
	var cp rune
	for _, b := range seq {
		decodeStep(&state, &cp, b)
	}
	if state != utf8Accept {
		t.isUTF8 = false
		return rawChar{r: rune(b0), raw: []byte{b0}}, nil
	}
	t.r.Discard(len(next))
	return rawChar{r: cp, raw: seq}, nil
}

// pushBack returns c to be the next character nextChar reports.
func (t *RawReader) pushBack(c rawChar) { t.lookahead = &c }

// ReadWord returns the next word, per spec.md §4.4: a maximal run of
// non-whitespace, non-punctuation bytes, with standalone punctuation
// becoming its own single-character word. eof is true only once the
// stream is exhausted with no word to report.
func (t *RawReader) ReadWord(maxLen int) (word []byte, eof bool) {
	if maxLen <= 0 {
		maxLen = DefaultMaxWordLen
	}
	for {
		c, err := t.nextChar()
		if err != nil {
			return nil, true
		}
		if !isSpace(c.r) {
			t.pushBack(c)
			break
		}
	}

	var buf []byte
	for {
		c, err := t.nextChar()
		if err == io.EOF {
			break
		}
		if unicode.IsPunct(c.r) {
			if len(buf) == 0 {
				buf = append(buf, c.raw...)
			} else {
				t.pushBack(c)
			}
			break
		}
		if isSpace(c.r) {
			t.pushBack(c)
			break
		}
		if len(buf)+len(c.raw) < maxLen {
			buf = append(buf, c.raw...)
		}
	}
	return buf, false
}
