package tile

import (
	"bufio"
	"fmt"
	"os"

	"github.com/corpuslex/w2n/src/go/lexicon"
)

// WriteText writes the "neighbors" dump from spec.md §6.3: one line
// per lexicon entry with a non-empty row, `<text>: <nb1>_<c1>, ...`,
// truncated to area neighbors.
func (m *Matrix) WriteText(path string, lex *lexicon.Lexicon, area int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tile: create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	for y := 0; y < lex.Len(); y++ {
		row := m.GetRow(y, area)
		if len(row) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: ", lex.Entry(int32(y)).Text); err != nil {
			return err
		}
		for i, pair := range row {
			neighbor := lex.Entry(int32(pair.Col)).Text
			if i > 0 {
				if _, err := fmt.Fprintf(w, ", %s_%d", neighbor, pair.Count); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(w, "%s_%d", neighbor, pair.Count); err != nil {
					return err
				}
			}
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
