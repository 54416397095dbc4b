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

import "os"

// BlockFile is the raw, fixed-block-size backing store the allocator places
// objects into. spec.md §4.3 only requires byte-addressable random access;
// this interface lets that random access be a plain local file or a RADOS
// object (see blockfile_ceph.go, built with -tags ceph).
type BlockFile interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// osBlockFile is the default BlockFile, a thin wrapper over *os.File.
type osBlockFile struct {
	f *os.File
}

// OpenOSBlockFile opens (creating if necessary) the object file at path.
func OpenOSBlockFile(path string) (BlockFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, err
	}
	return &osBlockFile{f: f}, nil
}

func (b *osBlockFile) ReadAt(p []byte, off int64) (int, error)  { return b.f.ReadAt(p, off) }
func (b *osBlockFile) WriteAt(p []byte, off int64) (int, error) { return b.f.WriteAt(p, off) }
func (b *osBlockFile) Truncate(size int64) error                { return b.f.Truncate(size) }
func (b *osBlockFile) Sync() error                              { return b.f.Sync() }
func (b *osBlockFile) Close() error                              { return b.f.Close() }
