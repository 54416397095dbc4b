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

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const cleanMarkerName = "clean"

// CleanMarker is the four-decimal-line on-disk file (§4.5/§6) whose
// presence certifies the database is globally consistent. CurSearch is
// threaded opaquely (Open Question #2): coredb reads and writes it but
// never interprets it.
type CleanMarker struct {
	VersionMajor int
	VersionMinor int
	VersionPatch int
	CurSearch    int64
}

func cleanMarkerPath(dir string) string {
	return filepath.Join(dir, cleanMarkerName)
}

// readCleanMarker parses the clean marker file, mirroring db.c's
// fgets/atoi reads line by line instead of a structured format so a
// truncated file fails cleanly on the first missing line.
func readCleanMarker(path string) (CleanMarker, error) {
	f, err := os.Open(path)
	if err != nil {
		return CleanMarker{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	readInt := func() (int64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("clean marker: truncated")
		}
		return strconv.ParseInt(sc.Text(), 10, 64)
	}

	major, err := readInt()
	if err != nil {
		return CleanMarker{}, err
	}
	minor, err := readInt()
	if err != nil {
		return CleanMarker{}, err
	}
	patch, err := readInt()
	if err != nil {
		return CleanMarker{}, err
	}
	curSearch, err := readInt()
	if err != nil {
		return CleanMarker{}, err
	}
	return CleanMarker{
		VersionMajor: int(major),
		VersionMinor: int(minor),
		VersionPatch: int(patch),
		CurSearch:    curSearch,
	}, nil
}

// writeCleanMarker creates (or overwrites) the clean marker, following
// db_is_clean's fformat("%d\n%d\n%d\n") + fformat("%l\n", cur_search).
func writeCleanMarker(dir string, m CleanMarker) error {
	path := cleanMarkerPath(dir)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cannot create file 'clean': %w", err)
	}
	_, err = fmt.Fprintf(f, "%d\n%d\n%d\n%d\n", m.VersionMajor, m.VersionMinor, m.VersionPatch, m.CurSearch)
	if err1 := f.Close(); err == nil {
		err = err1
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot create file 'clean': %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cannot create file 'clean': %w", err)
	}
	return nil
}

// removeCleanMarker deletes the clean marker, following db_is_dirty's
// unlink(c_clean_file) which panics on any failure other than "already gone".
func removeCleanMarker(dir string) error {
	err := os.Remove(cleanMarkerPath(dir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove file 'clean': %w", err)
	}
	return nil
}
