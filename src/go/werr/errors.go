// Package werr defines the sentinel error kinds a build/query run can
// surface, so callers can discriminate with errors.Is instead of parsing
// messages.
package werr

import "errors"

var (
	ErrIoOpenFailed     = errors.New("io: open failed")
	ErrIoShortWrite     = errors.New("io: short write")
	ErrIoCorruptMagic   = errors.New("io: corrupt magic")
	ErrIoTruncated      = errors.New("io: truncated")
	ErrAllocFailed      = errors.New("alloc: failed")
	ErrMatrixReadonly   = errors.New("matrix: readonly, insert rejected")
	ErrOutOfRange       = errors.New("matrix: coordinate out of range")
	ErrTokenOverflow    = errors.New("tokenizer: token overflow")
	ErrLexiconFull      = errors.New("lexicon: probe chain exhausted before resize")
	ErrWordNotInLexicon = errors.New("word not in dictionary, sorry")
)
