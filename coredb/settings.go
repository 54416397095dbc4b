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
package coredb

import "github.com/dc0d/onexit"

// SettingsT groups every process-wide knob the store needs before Open.
// Mirrors the teacher's settings-struct shape: a package-level var plus
// a get/set dispatcher, instead of scattering flags through constructors.
type SettingsT struct {
	CacheWidth         int
	CacheDepth         int
	ForcedCleanupLimit int
	ForcedCleanupBound int
	BlockSize          int
	BitBlockGrowth     int
	MemoryBudgetBytes  int64
	CompressionCodec   string // "none" | "lz4"
	IndexBackend       string // "file" | "mysql" | "postgres"
	ArchiveBackend     string // "none" | "s3"
	VersionMajor       int
	VersionMinor       int
	VersionPatch       int
}

var Settings SettingsT = SettingsT{
	CacheWidth:         997,
	CacheDepth:         4,
	ForcedCleanupLimit: 50,
	ForcedCleanupBound: 5,
	BlockSize:          256,
	BitBlockGrowth:     512,
	MemoryBudgetBytes:  256 << 20,
	CompressionCodec:   "none",
	IndexBackend:       "file",
	ArchiveBackend:     "none",
	VersionMajor:       1,
	VersionMinor:       0,
	VersionPatch:       0,
}

// InitSettings wires the registered exit hook that flushes and closes
// whichever *DB was last opened through Open. Call after filling Settings.
func InitSettings() {
	onexit.Register(func() {
		closeLastOpenedOnExit()
	})
}

// ChangeSettings is a 0/1/2-arg get/set dispatcher over Settings, following
// the teacher's ChangeSettings shape so an admin shell can read or write a
// single knob by name without a generated accessor per field.
func ChangeSettings(a ...string) any {
	if len(a) == 0 {
		return map[string]any{
			"CacheWidth":         Settings.CacheWidth,
			"CacheDepth":         Settings.CacheDepth,
			"ForcedCleanupLimit": Settings.ForcedCleanupLimit,
			"ForcedCleanupBound": Settings.ForcedCleanupBound,
			"BlockSize":          Settings.BlockSize,
			"BitBlockGrowth":     Settings.BitBlockGrowth,
			"MemoryBudgetBytes":  Settings.MemoryBudgetBytes,
			"CompressionCodec":   Settings.CompressionCodec,
			"IndexBackend":       Settings.IndexBackend,
			"ArchiveBackend":     Settings.ArchiveBackend,
		}
	}
	if len(a) == 1 {
		switch a[0] {
		case "CacheWidth":
			return Settings.CacheWidth
		case "CacheDepth":
			return Settings.CacheDepth
		case "ForcedCleanupLimit":
			return Settings.ForcedCleanupLimit
		case "ForcedCleanupBound":
			return Settings.ForcedCleanupBound
		case "BlockSize":
			return Settings.BlockSize
		case "BitBlockGrowth":
			return Settings.BitBlockGrowth
		case "MemoryBudgetBytes":
			return Settings.MemoryBudgetBytes
		case "CompressionCodec":
			return Settings.CompressionCodec
		case "IndexBackend":
			return Settings.IndexBackend
		case "ArchiveBackend":
			return Settings.ArchiveBackend
		default:
			panic("unknown setting: " + a[0])
		}
	}
	switch a[0] {
	case "CompressionCodec":
		Settings.CompressionCodec = a[1]
	case "IndexBackend":
		Settings.IndexBackend = a[1]
	case "ArchiveBackend":
		Settings.ArchiveBackend = a[1]
	default:
		panic("unknown setting: " + a[0])
	}
	return true
}

// closeLastOpenedOnExit is swapped by Open (Close leaves it in place) so onexit.Register has a
// stable function value to call even though DB instances are created and
// torn down dynamically (onexit only takes nullary funcs registered once).
var closeLastOpenedOnExit = func() {}
