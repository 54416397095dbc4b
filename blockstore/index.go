/*
Copyright (C) 2023  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package blockstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/btree"
)

// Location is the external index's mapping from an object number to its
// placement in the block file (spec.md §4.3's "external index").
type Location struct {
	Offset int
	Size   int
}

// Index is the external object-number -> (offset, size) mapping. It is kept
// outside the block file itself, exactly as spec.md §4.3 requires, so that
// a corrupt block file never takes the addressing structure down with it.
//
// First/Next let the allocator's bitmap-rebuild-at-startup walk every known
// location without needing its own storage backend.
type Index interface {
	Retrieve(objnum int) (Location, bool)
	Store(objnum int, loc Location)
	Remove(objnum int)
	First() (objnum int, ok bool)
	Next(objnum int) (next int, ok bool)
	Sync() error
	Close() error
}

type entry struct {
	objnum int
	loc    Location
}

func entryLess(a, b entry) bool { return a.objnum < b.objnum }

// fileIndex is the default Index: an in-memory ordered btree rebuilt at
// startup by replaying an append-only log, grounded on the teacher's
// FileLogfile line format ("insert "/"delete " prefixed JSON).
type fileIndex struct {
	tree *btree.BTreeG[entry]
	log  *os.File
}

// OpenFileIndex opens (creating if necessary) the index log at path and
// replays it to rebuild the in-memory ordered structure.
func OpenFileIndex(path string) (Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, fmt.Errorf("blockstore: opening index log: %w", err)
	}
	idx := &fileIndex{tree: btree.NewG[entry](32, entryLess), log: f}
	if err := idx.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *fileIndex) replay() error {
	fi, err := idx.log.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		return nil
	}
	scanner := bufio.NewScanner(idx.log)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b := scanner.Bytes()
		switch {
		case len(b) == 0:
			// nop, matches the teacher's tolerant blank-line handling
		case len(b) >= 7 && string(b[0:7]) == "delete ":
			var objnum int
			if err := json.Unmarshal(b[7:], &objnum); err != nil {
				return fmt.Errorf("blockstore: corrupt delete record: %w", err)
			}
			idx.tree.Delete(entry{objnum: objnum})
		case len(b) >= 7 && string(b[0:7]) == "insert ":
			var rec struct {
				Objnum int
				Loc    Location
			}
			if err := json.Unmarshal(b[7:], &rec); err != nil {
				return fmt.Errorf("blockstore: corrupt insert record: %w", err)
			}
			idx.tree.ReplaceOrInsert(entry{objnum: rec.Objnum, loc: rec.Loc})
		default:
			return fmt.Errorf("blockstore: unknown index log record: %q", b)
		}
	}
	return scanner.Err()
}

func (idx *fileIndex) append(line string) {
	idx.log.WriteString(line)
}

func (idx *fileIndex) Retrieve(objnum int) (Location, bool) {
	e, ok := idx.tree.Get(entry{objnum: objnum})
	return e.loc, ok
}

func (idx *fileIndex) Store(objnum int, loc Location) {
	idx.tree.ReplaceOrInsert(entry{objnum: objnum, loc: loc})
	var b bytes.Buffer
	b.WriteString("insert ")
	tmp, _ := json.Marshal(struct {
		Objnum int
		Loc    Location
	}{objnum, loc})
	b.Write(tmp)
	b.WriteString("\n")
	idx.append(b.String())
}

func (idx *fileIndex) Remove(objnum int) {
	idx.tree.Delete(entry{objnum: objnum})
	var b bytes.Buffer
	b.WriteString("delete ")
	tmp, _ := json.Marshal(objnum)
	b.Write(tmp)
	b.WriteString("\n")
	idx.append(b.String())
}

func (idx *fileIndex) First() (int, bool) {
	var found entry
	ok := false
	idx.tree.Ascend(func(e entry) bool {
		found = e
		ok = true
		return false
	})
	return found.objnum, ok
}

func (idx *fileIndex) Next(objnum int) (int, bool) {
	var found entry
	ok := false
	idx.tree.AscendGreaterOrEqual(entry{objnum: objnum + 1}, func(e entry) bool {
		found = e
		ok = true
		return false
	})
	return found.objnum, ok
}

func (idx *fileIndex) Sync() error { return idx.log.Sync() }
func (idx *fileIndex) Close() error { return idx.log.Close() }
