package tile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring"

	"github.com/corpuslex/w2n/src/go/werr"
)

const magic = "HQUA"

// WriteBinary writes the matrix in the format from spec.md §6.2: a
// magic/geometry header followed by each tile's live-cell count and
// cells, in row-major (y outer, x inner) order. It writes to a
// temporary file in the same directory and renames over path, so a
// failed write never leaves a half-written file visible under path.
func (m *Matrix) WriteBinary(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("tile: create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	if err := writeBinaryBody(m, w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("tile: flush %s: %w", tmp, werr.ErrIoShortWrite)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tile: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tile: rename into %s: %w", path, err)
	}
	return nil
}

func writeBinaryBody(m *Matrix, w io.Writer) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	hdr := []any{int32(m.wTiles), int32(m.hTiles), uint16(m.tileSide), int32(m.used)}
	for _, v := range hdr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return werr.ErrIoShortWrite
		}
	}
	for i := range m.tiles {
		t := &m.tiles[i]
		num := int32(0)
		if len(t.cells) > 0 {
			num = int32(t.num)
		}
		if err := binary.Write(w, binary.LittleEndian, num); err != nil {
			return werr.ErrIoShortWrite
		}
		if num == 0 {
			continue
		}
		for _, c := range t.cells[:num] {
			if err := binary.Write(w, binary.LittleEndian, c.coord); err != nil {
				return werr.ErrIoShortWrite
			}
			if err := binary.Write(w, binary.LittleEndian, c.count); err != nil {
				return werr.ErrIoShortWrite
			}
		}
	}
	return nil
}

// ReadBinary loads a matrix previously written by WriteBinary. The
// result is already ReadOnly: the file's cells are assumed to already
// be in Finalize order, per spec.md §6.2. A corrupt magic or a
// truncated body aborts the load and returns an empty ReadOnly matrix
// alongside the error, matching spec.md §7's "corrupt binary aborts
// load and returns empty matrix".
func ReadBinary(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return emptyReadOnly(), fmt.Errorf("tile: open %s: %w", path, werr.ErrIoOpenFailed)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil || string(got[:]) != magic {
		return emptyReadOnly(), werr.ErrIoCorruptMagic
	}

	var wTiles, hTiles, used int32
	var tileSide uint16
	for _, dst := range []any{&wTiles, &hTiles, &tileSide, &used} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return emptyReadOnly(), fmt.Errorf("tile: %s: %w", path, werr.ErrIoTruncated)
		}
	}

	m := &Matrix{
		tileSide: int(tileSide),
		wTiles:   int(wTiles),
		hTiles:   int(hTiles),
		used:     int(used),
		state:    ReadOnly,
		tiles:    make([]localTile, int(wTiles)*int(hTiles)),
	}
	for i := range m.tiles {
		var num int32
		if err := binary.Read(r, binary.LittleEndian, &num); err != nil {
			return emptyReadOnly(), fmt.Errorf("tile: %s: %w", path, werr.ErrIoTruncated)
		}
		if num == 0 {
			continue
		}
		cells := make([]cell, num)
		for j := range cells {
			if err := binary.Read(r, binary.LittleEndian, &cells[j].coord); err != nil {
				return emptyReadOnly(), fmt.Errorf("tile: %s: %w", path, werr.ErrIoTruncated)
			}
			if err := binary.Read(r, binary.LittleEndian, &cells[j].count); err != nil {
				return emptyReadOnly(), fmt.Errorf("tile: %s: %w", path, werr.ErrIoTruncated)
			}
		}
		m.tiles[i].cells = cells
		m.tiles[i].num = int(num)
	}
	m.rowBitmap = buildRowBitmap(m)
	return m, nil
}

func emptyReadOnly() *Matrix {
	return &Matrix{state: ReadOnly, rowBitmap: roaring.New()}
}

func buildRowBitmap(m *Matrix) *roaring.Bitmap {
	bm := roaring.New()
	for ti := range m.tiles {
		t := &m.tiles[ti]
		if t.num == 0 {
			continue
		}
		qy := ti / m.wTiles
		cells := t.cells[:t.num]
		for j := 0; j < len(cells); {
			ry := int(cells[j].coord >> 16)
			bm.Add(uint32(qy*m.tileSide + ry))
			j++
			for j < len(cells) && int(cells[j].coord>>16) == ry {
				j++
			}
		}
	}
	return bm
}
