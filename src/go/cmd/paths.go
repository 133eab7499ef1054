package cmd

import "strings"

// setExtension derives a default artifact path from a corpus path
// when flag is empty, by stripping corpus's extension (if any) and
// appending suffix — e.g. "corpus.txt" + ".lex" -> "corpus.lex". This
// mirrors the original CLI's setextension helper (spec.md §9,
// supplemented feature 1); it is purely a CLI convenience, never
// consulted by the core packages.
func setExtension(flag, corpus, suffix string) string {
	if flag != "" {
		return flag
	}
	base := corpus
	if i := strings.LastIndexByte(corpus, '.'); i > strings.LastIndexByte(corpus, '/') {
		base = corpus[:i]
	}
	return base + suffix
}
