//go:build ceph

/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

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
	"sync"

	"github.com/ceph/go-ceph/rados"
)

// CephConfig names a RADOS cluster/pool/object to hold the whole object
// file as a single striped RADOS object, grounded on persistence-ceph.go's
// CephFactory fields.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Object      string // RADOS object name backing the entire block file
}

// CephBlockFile is a BlockFile backed by a single RADOS object, using
// stat+write_full-style offset writes since RADOS has no append primitive.
type CephBlockFile struct {
	cfg CephConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

// OpenCephBlockFile lazily connects on first use, matching
// CephStorage.ensureOpen's deferred-connect behavior.
func OpenCephBlockFile(cfg CephConfig) (BlockFile, error) {
	return &CephBlockFile{cfg: cfg}, nil
}

func (b *CephBlockFile) ensureOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return nil
	}
	conn, err := rados.NewConnWithClusterAndUser(b.cfg.ClusterName, b.cfg.UserName)
	if err != nil {
		return err
	}
	if b.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(b.cfg.ConfFile); err != nil {
			return err
		}
	} else if err := conn.ReadDefaultConfigFile(); err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	ioctx, err := conn.OpenIOContext(b.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return err
	}
	b.conn, b.ioctx, b.opened = conn, ioctx, true
	return nil
}

func (b *CephBlockFile) ReadAt(p []byte, off int64) (int, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.ioctx.Read(b.cfg.Object, p, uint64(off))
}

func (b *CephBlockFile) WriteAt(p []byte, off int64) (int, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	if err := b.ioctx.Write(b.cfg.Object, p, uint64(off)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *CephBlockFile) Truncate(size int64) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.ioctx.Truncate(b.cfg.Object, uint64(size))
}

func (b *CephBlockFile) Sync() error {
	// RADOS writes used here are synchronous; nothing to flush.
	return nil
}

func (b *CephBlockFile) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.opened {
		return nil
	}
	b.ioctx.Destroy()
	b.conn.Shutdown()
	b.opened = false
	return nil
}
