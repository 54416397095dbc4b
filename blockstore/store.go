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

// Package blockstore implements the block-allocated object file: a flat
// file of fixed-size blocks, a bitmap occupancy tracker rebuilt at startup,
// and an external object-number -> (offset, size) index kept outside the
// file itself, per spec.md §4.3.
package blockstore

import (
	"fmt"
)

// Store is the block-allocated object file façade: db_get/db_put/db_check/
// db_del from original_source/genesis/src/db.c, generalized over pluggable
// Index and BlockFile backends and an injectable Codec.
type Store struct {
	file  BlockFile
	index Index
	bm    *bitmap
	alloc *allocator
	codec Codec
}

// Open wires a BlockFile and Index together, rebuilds the in-memory bitmap
// from the index's full contents (sync_index in db.c's init_binary_db), and
// returns a ready Store. The bitmap is never persisted; it is always
// reconstructed from the index, which is the durable source of truth for
// occupancy.
func Open(file BlockFile, index Index, codec Codec) (*Store, error) {
	if codec == nil {
		codec = NewCodec()
	}
	bm := newBitmap()
	s := &Store{file: file, index: index, bm: bm, alloc: newAllocator(bm), codec: codec}

	objnum, ok := index.First()
	for ok {
		loc, found := index.Retrieve(objnum)
		if !found {
			return nil, fmt.Errorf("blockstore: index inconsistent for object %d", objnum)
		}
		bm.mark(loc.Offset/BlockSize, loc.Size)
		objnum, ok = index.Next(objnum)
	}
	return s, nil
}

// Get reads back the payload stored for objnum. The second return value is
// false if objnum is not present in the index at all.
func (s *Store) Get(objnum int) ([]byte, bool, error) {
	loc, ok := s.index.Retrieve(objnum)
	if !ok {
		return nil, false, nil
	}
	raw := make([]byte, loc.Size)
	if _, err := s.file.ReadAt(raw, int64(loc.Offset)); err != nil {
		return nil, true, fmt.Errorf("blockstore: reading object %d: %w", objnum, err)
	}
	payload, err := s.codec.Decode(raw)
	if err != nil {
		return nil, true, fmt.Errorf("blockstore: decoding object %d: %w", objnum, err)
	}
	return payload, true, nil
}

// Put writes payload for objnum, following db_put's placement policy
// exactly: if the object already exists and the new encoding needs no more
// blocks than the old one, it is overwritten in place; otherwise the old
// space is freed and a fresh run is allocated (which may, and often will,
// be the very same blocks, since db_alloc resumes scanning from last_free).
func (s *Store) Put(objnum int, payload []byte) error {
	encoded := s.codec.Encode(payload)
	newSize := len(encoded)

	var offset int
	if old, ok := s.index.Retrieve(objnum); ok {
		if needed(newSize) > needed(old.Size) {
			s.alloc.free(old.Offset/BlockSize, old.Size)
			offset = s.alloc.alloc(newSize) * BlockSize
		} else {
			offset = old.Offset
		}
	} else {
		offset = s.alloc.alloc(newSize) * BlockSize
	}

	s.index.Store(objnum, Location{Offset: offset, Size: newSize})

	if _, err := s.file.WriteAt(encoded, int64(offset)); err != nil {
		return fmt.Errorf("blockstore: writing object %d: %w", objnum, err)
	}
	return nil
}

// Check reports whether objnum has a known location, without reading it
// back (db_check).
func (s *Store) Check(objnum int) bool {
	_, ok := s.index.Retrieve(objnum)
	return ok
}

// Del removes objnum's index entry, frees its blocks, and tags its old
// location with the delobj scavenging marker (db_del).
func (s *Store) Del(objnum int) error {
	loc, ok := s.index.Retrieve(objnum)
	if !ok {
		return fmt.Errorf("blockstore: delete of unknown object %d", objnum)
	}
	s.index.Remove(objnum)
	s.alloc.free(loc.Offset/BlockSize, loc.Size)

	if _, err := s.file.WriteAt([]byte(delobjTag), int64(loc.Offset)); err != nil {
		return fmt.Errorf("blockstore: tagging deleted object %d: %w", objnum, err)
	}
	return nil
}

// First returns the lowest object number known to the index, for cache
// prime/sweep passes that want to walk every persisted object in order.
func (s *Store) First() (objnum int, ok bool) {
	return s.index.First()
}

// Next returns the next object number after objnum in index order.
func (s *Store) Next(objnum int) (next int, ok bool) {
	return s.index.Next(objnum)
}

// Sync flushes both the block file and the index to stable storage.
func (s *Store) Sync() error {
	if err := s.file.Sync(); err != nil {
		return err
	}
	return s.index.Sync()
}

// Close flushes and releases the underlying file and index.
func (s *Store) Close() error {
	fileErr := s.file.Close()
	idxErr := s.index.Close()
	if fileErr != nil {
		return fileErr
	}
	return idxErr
}
