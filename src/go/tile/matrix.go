// Package tile implements the tile-hashed sparse 2D counter: a fixed
// grid of open-addressed hash tables, each covering a tile_side ×
// tile_side patch of a logical (row, col) → count map. See
// spec.md §4.3.
package tile

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/corpuslex/w2n/src/go/werr"
)

// DefaultTileSide is the default edge length of a tile, chosen so a
// local (rx, ry) pair packs into a uint32 as rx | (ry<<16).
const DefaultTileSide = 8192

const initialTileCapacity = 683

// cell is one slot of a tile's open-addressed table. count == 0 marks
// an empty slot, so live counts are strictly positive; there is
// deliberately no decrement API, only whole-cell Add and Prune.
type cell struct {
	coord uint32
	count uint32
}

// localTile is one tile_side × tile_side region's hash table.
type localTile struct {
	cells []cell
	num   int // live cell count
}

// State distinguishes a matrix accepting inserts from one finalized
// for queries — modeled as a tagged field rather than distinct types
// so Matrix can expose a single Go-idiomatic value, but every mutating
// method checks it and returns werr.ErrMatrixReadonly.
type State int

const (
	Mutable State = iota
	ReadOnly
)

// Matrix is the tile-hashed sparse counter.
type Matrix struct {
	tileSide  int
	wTiles    int
	hTiles    int
	tiles     []localTile     // row-major, hTiles outer, wTiles inner
	used      int             // live cell count across the whole matrix
	state     State
	rowBitmap *roaring.Bitmap // rows with >=1 live cell, built by Finalize
}

// New creates a Mutable matrix covering a logical width×height space,
// tiled at tileSide (DefaultTileSide if <= 0).
func New(width, height, tileSide int) *Matrix {
	if tileSide <= 0 {
		tileSide = DefaultTileSide
	}
	wTiles := (width-1)/tileSide + 1
	hTiles := (height-1)/tileSide + 1
	if width <= 0 {
		wTiles = 1
	}
	if height <= 0 {
		hTiles = 1
	}
	return &Matrix{
		tileSide: tileSide,
		wTiles:   wTiles,
		hTiles:   hTiles,
		tiles:    make([]localTile, wTiles*hTiles),
	}
}

// TileSide, WTiles, HTiles, Used, State report the matrix geometry and
// bookkeeping fields used by persistence and query code.
func (m *Matrix) TileSide() int { return m.tileSide }
func (m *Matrix) WTiles() int   { return m.wTiles }
func (m *Matrix) HTiles() int   { return m.hTiles }
func (m *Matrix) Used() int     { return m.used }
func (m *Matrix) State() State  { return m.state }

func jenkinsMix(a uint32) uint32 {
	a = (a + 0x7ed55d16) + (a << 12)
	a = (a ^ 0xc761c23c) ^ (a >> 19)
	a = (a + 0x165667b1) + (a << 5)
	a = (a + 0xd3a2646c) ^ (a << 9)
	a = (a + 0xfd7046c5) + (a << 3)
	a = (a ^ 0xb55a4f09) ^ (a >> 16)
	return a
}

func localCoord(x, y, tileSide int) (qx, qy int, coord uint32) {
	qx = x / tileSide
	qy = y / tileSide
	rx := uint32(x % tileSide)
	ry := uint32(y % tileSide)
	coord = rx | (ry << 16)
	return
}

// Add increments cell (row y, col x) by delta, allocating the tile
// and growing its table as needed. row is the window "anchor" side —
// GetRow(row) is how a query later fetches this word's neighbors —
// and col is the "neighbor" side, per spec.md §4.5's asymmetric
// update.
func (m *Matrix) Add(col, row int, delta uint32) error {
	if m.state != Mutable {
		return werr.ErrMatrixReadonly
	}
	qx, qy, coord := localCoord(col, row, m.tileSide)
	if qx < 0 || qx >= m.wTiles || qy < 0 || qy >= m.hTiles {
		return werr.ErrOutOfRange
	}
	idx := qy*m.wTiles + qx
	t := &m.tiles[idx]
	if len(t.cells) == 0 {
		t.cells = make([]cell, initialTileCapacity)
	}
	newslot := addToTile(t, coord, delta)
	if newslot {
		m.used++
	}
	return nil
}

// addToTile inserts coord/delta into t, growing as needed, and
// reports whether a fresh slot was created (as opposed to an existing
// cell's count being bumped).
func addToTile(t *localTile, coord uint32, delta uint32) bool {
	for {
		size := uint32(len(t.cells))
		i := jenkinsMix(coord) % size
		miss := 0
		for t.cells[i].count != 0 {
			if t.cells[i].coord == coord {
				t.cells[i].count += delta
				return false
			}
			i = (i + 1) % size
			miss++
		}

		newNum := t.num + 1
		if miss > 1024 || newNum > int(size)-17 {
			growTile(t, size)
			continue
		}
		t.cells[i].coord = coord
		t.cells[i].count = delta
		t.num = newNum
		return true
	}
}

func growTile(t *localTile, oldSize uint32) {
	var newSize uint32
	if oldSize < 65535 {
		newSize = oldSize*2 - 17
	} else {
		newSize = oldSize + oldSize/7 - 17
	}
	fresh := make([]cell, newSize)
	for _, c := range t.cells {
		if c.count == 0 {
			continue
		}
		i := jenkinsMix(c.coord) % newSize
		for fresh[i].count != 0 {
			i = (i + 1) % newSize
		}
		fresh[i] = c
	}
	t.cells = fresh
}

// Get returns the current count at (col, row), or 0 if absent.
func (m *Matrix) Get(col, row int) uint32 {
	qx, qy, coord := localCoord(col, row, m.tileSide)
	if qx < 0 || qx >= m.wTiles || qy < 0 || qy >= m.hTiles {
		return 0
	}
	t := &m.tiles[qy*m.wTiles+qx]
	if len(t.cells) == 0 {
		return 0
	}
	size := uint32(len(t.cells))
	i := jenkinsMix(coord) % size
	for t.cells[i].count != 0 {
		if t.cells[i].coord == coord {
			return t.cells[i].count
		}
		i = (i + 1) % size
	}
	return 0
}

// Prune clears every live cell with count <= threshold.
func (m *Matrix) Prune(threshold uint32) (int, error) {
	if m.state != Mutable {
		return 0, werr.ErrMatrixReadonly
	}
	pruned := 0
	for ti := range m.tiles {
		t := &m.tiles[ti]
		if len(t.cells) == 0 {
			continue
		}
		for ci := range t.cells {
			c := &t.cells[ci]
			if c.count != 0 && c.count <= threshold {
				c.coord, c.count = 0, 0
				t.num--
				m.used--
				pruned++
			}
		}
	}
	return pruned, nil
}

// Finalize sorts every tile's cells by (local row ascending, count
// descending — empty cells pushed to the end) and transitions the
// matrix to ReadOnly. It is idempotent: calling it again is a no-op.
//
// The "local row" here is the tile-relative ry packed in a cell's
// upper 16 bits; the original source names this sort key "column" but
// its value is the coord's high half, which is ry, not rx — row
// extraction's binary search target confirms this (see GetRow).
func (m *Matrix) Finalize() {
	if m.state == ReadOnly {
		return
	}
	bm := roaring.New()
	for ti := range m.tiles {
		t := &m.tiles[ti]
		if len(t.cells) == 0 {
			continue
		}
		qy := ti / m.wTiles
		sortTile(t.cells)
		live := 0
		for live < len(t.cells) && t.cells[live].count != 0 {
			live++
		}
		t.num = live
		for j := 0; j < live; {
			ry := int(t.cells[j].coord >> 16)
			bm.Add(uint32(qy*m.tileSide + ry))
			j++
			for j < live && int(t.cells[j].coord>>16) == ry {
				j++
			}
		}
	}
	m.rowBitmap = bm
	m.state = ReadOnly
}

// sortTile orders cells by (ry asc, empty-last, count desc) using an
// insertion sort over the small (initially 683-cell) arrays — cheap
// enough at this size and keeps the comparator's tri-state logic
// (empty sentinel vs. count tie-break) in one readable place.
func sortTile(cells []cell) {
	less := func(a, b cell) bool {
		ra, rb := rowKey(a), rowKey(b)
		if ra != rb {
			return ra < rb
		}
		return a.count > b.count
	}
	for i := 1; i < len(cells); i++ {
		v := cells[i]
		j := i - 1
		for j >= 0 && less(v, cells[j]) {
			cells[j+1] = cells[j]
			j--
		}
		cells[j+1] = v
	}
}

func rowKey(c cell) uint32 {
	if c.count == 0 {
		return 0x7FFFFFFF
	}
	return c.coord >> 16
}

// RowPair is one (col, count) result from GetRow.
type RowPair struct {
	Col   int
	Count uint32
}

// RowBitmap reports, after Finalize, which global rows have at least
// one live cell — used by the query engine to skip empty rows instead
// of scanning every lexicon id.
func (m *Matrix) RowBitmap() *roaring.Bitmap { return m.rowBitmap }

// GetRow fetches up to maxElements (col, count) pairs for global row
// y, in the cell-internal order produced by Finalize: tile columns
// left to right, count descending within each tile's contribution.
// maxElements < 0 means unbounded.
func (m *Matrix) GetRow(y int, maxElements int) []RowPair {
	qy := y / m.tileSide
	if qy < 0 || qy >= m.hTiles {
		return nil
	}
	var out []RowPair
	offset := qy * m.tileSide
	targetRy := uint32(y - offset)
	for qx := 0; qx < m.wTiles; qx++ {
		t := &m.tiles[qy*m.wTiles+qx]
		if len(t.cells) == 0 {
			continue
		}
		cells := t.cells[:t.num]
		start := sortSearchRy(cells, targetRy)
		if start == len(cells) || (cells[start].coord>>16) != targetRy {
			continue
		}
		for j := start; j < len(cells) && (cells[j].coord>>16) == targetRy; j++ {
			out = append(out, RowPair{
				Col:   int(cells[j].coord&0xFFFF) + qx*m.tileSide,
				Count: cells[j].count,
			})
			if maxElements >= 0 && len(out) >= maxElements {
				return out
			}
		}
	}
	return out
}

// sortSearchRy returns the index of the first cell whose ry (the
// coord's upper 16 bits) is >= target, within a slice already sorted
// by ry ascending.
func sortSearchRy(cells []cell, target uint32) int {
	lo, hi := 0, len(cells)
	for lo < hi {
		mid := (lo + hi) / 2
		if (cells[mid].coord >> 16) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
