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

import "testing"

func TestChangeSettingsGetAndSet(t *testing.T) {
	withDefaultSettings(t)

	if got := ChangeSettings("IndexBackend"); got != "file" {
		t.Fatalf("expected default IndexBackend=file, got %v", got)
	}
	ChangeSettings("CompressionCodec", "lz4")
	if got := ChangeSettings("CompressionCodec"); got != "lz4" {
		t.Fatalf("expected CompressionCodec to be updated to lz4, got %v", got)
	}
}

func TestChangeSettingsUnknownKeyPanics(t *testing.T) {
	withDefaultSettings(t)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected an unknown setting name to panic")
		}
	}()
	ChangeSettings("NotARealSetting")
}

func TestChangeSettingsNoArgsReturnsAll(t *testing.T) {
	withDefaultSettings(t)

	all, ok := ChangeSettings().(map[string]any)
	if !ok {
		t.Fatalf("expected a map of all settings")
	}
	if _, ok := all["IndexBackend"]; !ok {
		t.Fatalf("expected IndexBackend in the full settings dump")
	}
}
