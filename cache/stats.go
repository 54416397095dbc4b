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

package cache

import (
	"fmt"

	units "github.com/docker/go-units"
)

// Stats summarizes a single Cleanup pass for the ambient log line.
type Stats struct {
	BucketsSwept int
	Evicted      int
	Budget       int64
	InUse        int64
}

// FormatStats renders s for the log line Cache.Cleanup prints after a sweep:
// human-readable byte counts instead of raw integers.
func FormatStats(s Stats) string {
	return fmt.Sprintf("cache cleanup: swept %d buckets, evicted %d holders, memory %s/%s",
		s.BucketsSwept, s.Evicted, units.HumanSize(float64(s.InUse)), units.HumanSize(float64(s.Budget)))
}
