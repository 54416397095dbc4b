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
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// tamperWatch warns whenever the clean marker is removed or renamed while
// the process is running (external tampering, a backup tool restoring a
// stale directory, an operator deleting files by hand). It does not tell
// those apart from the removal markDirty makes itself: that one is
// reported too.
type tamperWatch struct {
	w *fsnotify.Watcher
}

func startTamperWatch(dir string) *tamperWatch {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Println("coredb: clean-marker watch disabled:", err)
		return nil
	}
	if err := w.Add(dir); err != nil {
		fmt.Println("coredb: clean-marker watch disabled:", err)
		w.Close()
		return nil
	}

	marker := filepath.Join(dir, cleanMarkerName)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name == marker && (ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0) {
					fmt.Println("coredb: warning: clean marker removed —", dir)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fmt.Println("coredb: clean-marker watch error:", err)
			}
		}
	}()

	return &tamperWatch{w: w}
}

func (t *tamperWatch) stop() {
	if t == nil || t.w == nil {
		return
	}
	t.w.Close()
}
