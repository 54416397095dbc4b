/*
Copyright (C) 2025  Carl-Philip Hänsch

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

// Package coredb ties blockstore and cache together into the lifecycle
// and consumer-facing API described by spec.md §4.5/§6: Open/flush/close,
// the clean marker, and get/put/del/check over object numbers.
package coredb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coldrun/objectstore/blockstore"
	"github.com/coldrun/objectstore/cache"
	"github.com/coldrun/objectstore/holder"
)

const (
	objectsFileName = "objects"
	indexFileName   = "index.log"
)

// DB is the top-level façade: the "collaborator"-shaped external
// interfaces of spec.md §6 assembled into one object a consumer opens once.
type DB struct {
	mu  sync.Mutex
	dir string

	store *blockstore.Store
	cache *cache.Cache

	clean     bool
	curSearch int64

	watcher  *tamperWatch
	archiver *S3Archiver
}

// SetArchiver wires an optional off-box backup target. When Settings
// ArchiveBackend is "s3" and an archiver is set, Flush fires an
// asynchronous upload of the current on-disk snapshot after each
// successful flush.
func (db *DB) SetArchiver(a *S3Archiver) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.archiver = a
}

// Open implements init(force_fresh) from spec.md §4.5: ensure the
// directory, validate or discard the clean marker, open the object file
// and index, rebuild the bitmap, and leave the store in a definite clean
// state before returning.
func Open(dir string, forceFresh bool) (*DB, error) {
	if err := ensureDir(dir, forceFresh); err != nil {
		return nil, err
	}

	fresh := forceFresh
	var curSearch int64
	markerPath := cleanMarkerPath(dir)
	if !forceFresh {
		existing := objectsFileExists(dir)
		marker, err := readCleanMarker(markerPath)
		switch {
		case err == nil:
			if marker.VersionMajor != Settings.VersionMajor ||
				marker.VersionMinor != Settings.VersionMinor ||
				marker.VersionPatch != Settings.VersionPatch {
				if existing {
					return nil, fmt.Errorf(
						"database was built under driver version %d.%d-%d, this binary is %d.%d-%d",
						marker.VersionMajor, marker.VersionMinor, marker.VersionPatch,
						Settings.VersionMajor, Settings.VersionMinor, Settings.VersionPatch)
				}
				fresh = true
			} else {
				curSearch = marker.CurSearch
			}
		case os.IsNotExist(err):
			if existing {
				return nil, fmt.Errorf("database is corrupted: missing clean marker in %s", dir)
			}
			fresh = true
		default:
			return nil, fmt.Errorf("reading clean marker: %w", err)
		}
	} else {
		fresh = true
	}

	blockFile, err := openBlockFile(dir, fresh)
	if err != nil {
		return nil, err
	}
	index, err := openIndex(dir, fresh)
	if err != nil {
		blockFile.Close()
		return nil, err
	}
	codec, err := newCodec()
	if err != nil {
		blockFile.Close()
		index.Close()
		return nil, err
	}

	store, err := blockstore.Open(blockFile, index, codec)
	if err != nil {
		blockFile.Close()
		index.Close()
		return nil, fmt.Errorf("rebuilding bitmap from index: %w", err)
	}

	db := &DB{
		dir:       dir,
		store:     store,
		curSearch: curSearch,
	}
	db.cache = cache.New(store, Settings.CacheWidth, Settings.CacheDepth)
	if Settings.MemoryBudgetBytes > 0 {
		db.cache.SetManager(cache.NewManager(Settings.MemoryBudgetBytes))
	}

	if fresh {
		if err := db.writeClean(); err != nil {
			blockFile.Close()
			index.Close()
			return nil, err
		}
	} else {
		db.clean = true
	}

	db.watcher = startTamperWatch(dir)
	closeLastOpenedOnExit = func() {
		db.Flush()
		db.Close()
	}

	return db, nil
}

func objectsFileExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, objectsFileName))
	return err == nil
}

// ensureDir mirrors init_binary_db's directory handling: create it if
// absent, and if something non-directory occupies the path, remove it and
// recreate as a directory (a fresh database always wins the collision).
func ensureDir(dir string, forceFresh bool) error {
	info, err := os.Stat(dir)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("removing non-directory %s: %w", dir, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

func openBlockFile(dir string, fresh bool) (blockstore.BlockFile, error) {
	path := filepath.Join(dir, objectsFileName)
	if fresh {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("creating objects file: %w", err)
		}
		f.Close()
	}
	return blockstore.OpenOSBlockFile(path)
}

func openIndex(dir string, fresh bool) (blockstore.Index, error) {
	switch Settings.IndexBackend {
	case "", "file":
		path := filepath.Join(dir, indexFileName)
		if fresh {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("removing old index log: %w", err)
			}
		}
		return blockstore.OpenFileIndex(path)
	default:
		return nil, fmt.Errorf("coredb: index backend %q is not supported by Open; only \"file\" is", Settings.IndexBackend)
	}
}

func newCodec() (blockstore.Codec, error) {
	switch Settings.CompressionCodec {
	case "", "none":
		return blockstore.NewCodec(), nil
	case "lz4":
		return blockstore.NewLZ4Codec(), nil
	default:
		return nil, fmt.Errorf("coredb: unknown compression codec %q", Settings.CompressionCodec)
	}
}

// writeClean implements is_clean(): write the marker (if not already
// marked clean in memory) and flip the in-memory flag.
func (db *DB) writeClean() error {
	if db.clean {
		return nil
	}
	m := CleanMarker{
		VersionMajor: Settings.VersionMajor,
		VersionMinor: Settings.VersionMinor,
		VersionPatch: Settings.VersionPatch,
		CurSearch:    db.curSearch,
	}
	if err := writeCleanMarker(db.dir, m); err != nil {
		return err
	}
	db.clean = true
	return nil
}

// markDirty implements is_dirty(): remove the marker (if currently clean)
// and flip the in-memory flag. put/del call this before touching the file.
func (db *DB) markDirty() error {
	if !db.clean {
		return nil
	}
	if err := removeCleanMarker(db.dir); err != nil {
		return err
	}
	db.clean = false
	return nil
}

// Get retrieves object n's body through the cache, following
// cache_retrieve/cache_discard in a single round trip for
// callers that just want the bytes rather than a live holder.
func (db *DB) Get(n holder.ObjNum) ([]byte, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	idx, ok := db.cache.Retrieve(n)
	if !ok {
		return nil, false
	}
	h := db.cache.Holder(idx)
	body := append([]byte(nil), h.Body...)
	db.cache.Discard(idx)
	return body, true
}

// holderFor returns the single live holder for n, rescuing it from the
// active/inactive chains or the store via Retrieve when one already exists,
// and only calling the retrieve-miss primitive get_holder when Retrieve has
// already confirmed none does — get_holder performs no uniqueness check of
// its own, so calling it unconditionally would let a second Put/Del for the
// same N allocate a second live holder alongside the first.
func (db *DB) holderFor(n holder.ObjNum) int32 {
	if idx, ok := db.cache.Retrieve(n); ok {
		return idx
	}
	return db.cache.GetHolder(n)
}

// Put writes n's body, marking the database dirty first (put always calls
// is_dirty() before touching the file, per spec.md §4.5).
func (db *DB) Put(n holder.ObjNum, body []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.markDirty(); err != nil {
		return err
	}
	idx := db.holderFor(n)
	h := db.cache.Holder(idx)
	h.Body = append([]byte(nil), body...)
	h.Dirty = true
	db.cache.Discard(idx)
	return nil
}

// Del removes object n: marks dirty, then kills the one live holder for n
// so the matching Discard drops it through the dead-delete path in
// cache.Discard instead of resurrecting a stale body on a later Sync.
func (db *DB) Del(n holder.ObjNum) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.cache.Check(n) {
		return fmt.Errorf("coredb: delete of unknown object %d", n)
	}
	if err := db.markDirty(); err != nil {
		return err
	}
	idx := db.holderFor(n)
	db.cache.Holder(idx).Dead = true
	db.cache.Discard(idx)
	return nil
}

// Check reports whether object n is known, without materializing it.
func (db *DB) Check(n holder.ObjNum) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cache.Check(n)
}

// Flush implements flush(): index-sync, then is_clean().
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.flushLocked(); err != nil {
		return err
	}
	db.maybeArchive()
	return nil
}

func (db *DB) flushLocked() error {
	if err := db.cache.Sync(); err != nil {
		return err
	}
	if err := db.store.Sync(); err != nil {
		return err
	}
	return db.writeClean()
}

// maybeArchive fires an async snapshot upload if an archiver is wired and
// Settings opts into the s3 backend. Must be called with db.mu held.
func (db *DB) maybeArchive() {
	if Settings.ArchiveBackend != "s3" || db.archiver == nil {
		return
	}
	dir, archiver := db.dir, db.archiver
	go func() {
		if err := archiver.Archive(context.Background(), dir); err != nil {
			fmt.Println("coredb: background archive failed:", err)
		}
	}()
}

// Close implements close(): close index, close object file (via store),
// stop the tamper watcher, and leave the marker clean.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.watcher != nil {
		db.watcher.stop()
	}
	if err := db.cache.Sync(); err != nil {
		return err
	}
	if err := db.store.Close(); err != nil {
		return err
	}
	return db.writeClean()
}

// NextObjectNumber allocates a fresh object number by incrementing the
// opaque cur_search counter carried on the clean marker (Open Question #2):
// coredb threads it through without interpreting it beyond "next integer".
func (db *DB) NextObjectNumber() holder.ObjNum {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.curSearch++
	return holder.ObjNum(db.curSearch)
}

// Cleanup runs one §4.4 cache sweep (age halving + forced-cleanup flood
// bound), exposed for a caller's periodic maintenance loop.
func (db *DB) Cleanup() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cache.Cleanup()
}
