//go:build !ceph

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

import "errors"

// CephConfig mirrors the ceph-tagged build's config shape so callers can
// reference it unconditionally.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Object      string
}

// OpenCephBlockFile is unavailable without the ceph build tag.
func OpenCephBlockFile(cfg CephConfig) (BlockFile, error) {
	return nil, errors.New("blockstore: built without -tags ceph, RADOS backend unavailable")
}
