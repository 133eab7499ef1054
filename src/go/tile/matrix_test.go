package tile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJunk(path string) error {
	return os.WriteFile(path, []byte("NOPE"), 0644)
}

func TestAddGetRoundtrip(t *testing.T) {
	m := New(100, 100, 16)
	if err := m.Add(5, 10, 3); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(5, 10, 2); err != nil {
		t.Fatal(err)
	}
	if got := m.Get(5, 10); got != 5 {
		t.Fatalf("Get = %d, want 5", got)
	}
	if got := m.Get(6, 10); got != 0 {
		t.Fatalf("Get(absent) = %d, want 0", got)
	}
}

func TestAddAfterFinalizeFails(t *testing.T) {
	m := New(100, 100, 16)
	m.Add(1, 1, 1)
	m.Finalize()
	if err := m.Add(2, 2, 1); err == nil {
		t.Fatal("expected error adding to a ReadOnly matrix")
	}
}

func TestGrowPreservesCells(t *testing.T) {
	m := New(2000, 200, 8192)
	// 1500 distinct cells force the tile's table to grow twice
	// (683 -> 1349 -> 2681 slots).
	for i := 0; i < 2000; i++ {
		if err := m.Add(i%1500, 0, 1); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	for i := 0; i < 1500; i++ {
		want := uint32(2000 / 1500)
		if 2000%1500 > i {
			want++
		}
		if got := m.Get(i, 0); got != want {
			t.Fatalf("Get(%d,0) = %d, want %d", i, got, want)
		}
	}
}

func TestFinalizeRowOrderAndBitmap(t *testing.T) {
	m := New(200, 200, 16)
	m.Add(1, 5, 1)
	m.Add(2, 5, 1)
	m.Add(3, 7, 1)
	m.Finalize()

	if bm := m.RowBitmap(); !bm.Contains(5) || !bm.Contains(7) || bm.Contains(6) {
		t.Fatalf("unexpected bitmap contents")
	}

	row := m.GetRow(5, -1)
	if len(row) != 2 {
		t.Fatalf("GetRow(5) len = %d, want 2", len(row))
	}
	seen := map[int]bool{}
	for _, p := range row {
		seen[p.Col] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("GetRow(5) missing expected columns: %+v", row)
	}
}

func TestPruneRemovesBelowThreshold(t *testing.T) {
	m := New(100, 100, 16)
	m.Add(1, 1, 1)
	m.Add(2, 1, 5)
	n, err := m.Prune(1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pruned %d cells, want 1", n)
	}
	if got := m.Get(1, 1); got != 0 {
		t.Fatalf("Get(1,1) after prune = %d, want 0", got)
	}
	if got := m.Get(2, 1); got != 5 {
		t.Fatalf("Get(2,1) after prune = %d, want 5", got)
	}
}

func TestBinaryRoundtrip(t *testing.T) {
	m := New(300, 300, 32)
	m.Add(1, 10, 4)
	m.Add(2, 10, 7)
	m.Add(9, 280, 1)
	m.Finalize()

	path := filepath.Join(t.TempDir(), "m.bin")
	if err := m.WriteBinary(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := ReadBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.State() != ReadOnly {
		t.Fatalf("loaded matrix not ReadOnly")
	}
	row := loaded.GetRow(10, -1)
	if len(row) != 2 {
		t.Fatalf("loaded GetRow(10) len = %d, want 2", len(row))
	}
	if !loaded.RowBitmap().Contains(280) {
		t.Fatalf("loaded row bitmap missing row 280")
	}
}

func TestReadBinaryCorruptMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	if err := writeJunk(path); err != nil {
		t.Fatal(err)
	}
	m, err := ReadBinary(path)
	if err == nil {
		t.Fatal("expected error on corrupt magic")
	}
	if m == nil || m.State() != ReadOnly {
		t.Fatalf("expected an empty ReadOnly matrix back alongside the error")
	}
}
