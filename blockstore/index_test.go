package blockstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileIndexStoreRetrieveRemove(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenFileIndex(filepath.Join(dir, "index.log"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()

	idx.Store(1, Location{Offset: 0, Size: 256})
	idx.Store(2, Location{Offset: 256, Size: 512})

	if loc, ok := idx.Retrieve(1); !ok || loc.Offset != 0 || loc.Size != 256 {
		t.Fatalf("unexpected retrieve for object 1: %+v %v", loc, ok)
	}

	idx.Remove(1)
	if _, ok := idx.Retrieve(1); ok {
		t.Fatalf("expected object 1 to be gone after remove")
	}
	if loc, ok := idx.Retrieve(2); !ok || loc.Offset != 256 {
		t.Fatalf("expected object 2 to survive removal of object 1")
	}
}

func TestFileIndexFirstNextOrdering(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenFileIndex(filepath.Join(dir, "index.log"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()

	idx.Store(5, Location{Offset: 0, Size: 1})
	idx.Store(1, Location{Offset: 1, Size: 1})
	idx.Store(3, Location{Offset: 2, Size: 1})

	first, ok := idx.First()
	if !ok || first != 1 {
		t.Fatalf("expected First()==1, got %d %v", first, ok)
	}
	second, ok := idx.Next(first)
	if !ok || second != 3 {
		t.Fatalf("expected Next(1)==3, got %d %v", second, ok)
	}
	third, ok := idx.Next(second)
	if !ok || third != 5 {
		t.Fatalf("expected Next(3)==5, got %d %v", third, ok)
	}
	if _, ok := idx.Next(third); ok {
		t.Fatalf("expected no entry after the last one")
	}
}

func TestFileIndexReplaysLogOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.log")

	idx, err := OpenFileIndex(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx.Store(7, Location{Offset: 42, Size: 99})
	idx.Store(8, Location{Offset: 142, Size: 10})
	idx.Remove(8)
	if err := idx.Sync(); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
	idx.Close()

	reopened, err := OpenFileIndex(path)
	if err != nil {
		t.Fatalf("unexpected reopen error: %v", err)
	}
	defer reopened.Close()

	if loc, ok := reopened.Retrieve(7); !ok || loc.Offset != 42 || loc.Size != 99 {
		t.Fatalf("expected object 7 to survive reopen, got %+v %v", loc, ok)
	}
	if _, ok := reopened.Retrieve(8); ok {
		t.Fatalf("expected object 8's deletion to survive reopen")
	}
}

func TestFileIndexOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.log")
	idx, err := OpenFileIndex(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected index log to be created: %v", err)
	}
}
