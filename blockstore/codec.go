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

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// delobjTag is written over a deleted object's old location so a stray read
// at a stale offset (or a bitmap-rebuild scan racing a delete) can recognize
// dead space instead of misinterpreting garbage, mirroring db_del's
// "fputs(\"delobj\", database_file)".
const delobjTag = "delobj"

// ErrDeletedObject is returned by Decode when it reads back a delobj tag.
var ErrDeletedObject = errors.New("blockstore: read a deleted (delobj) object")

// Codec serializes an opaque object payload to and from the raw bytes the
// allocator places in the block file. Encode/Decode never interpret the
// payload themselves; the caller (holder/cache layer) owns that.
type Codec interface {
	Encode(payload []byte) []byte
	Decode(raw []byte) ([]byte, error)
}

// plainCodec stores the payload byte-for-byte. Store.Get always reads back
// exactly the index's recorded size (the exact packed byte length, as
// genesis's db_get/db_put treat it), so no length framing is needed here —
// the raw buffer Decode receives already is the payload, modulo the delobj
// scavenging tag.
type plainCodec struct{}

// NewCodec returns the default, uncompressed Codec.
func NewCodec() Codec { return plainCodec{} }

func (plainCodec) Encode(payload []byte) []byte {
	return append([]byte(nil), payload...)
}

func (plainCodec) Decode(raw []byte) ([]byte, error) {
	if len(raw) >= len(delobjTag) && string(raw[:len(delobjTag)]) == delobjTag {
		return nil, ErrDeletedObject
	}
	return raw, nil
}

// lz4Codec LZ4 block-compresses the payload behind a two-uvarint header
// (compressed length, then original length; a compressed length of 0 marks
// a payload stored raw), for deployments that would rather spend CPU than
// disk (object bodies tend to be highly repetitive ColdC source+data).
type lz4Codec struct{}

// NewLZ4Codec returns a Codec that LZ4-compresses the payload in place.
func NewLZ4Codec() Codec { return lz4Codec{} }

func (lz4Codec) Encode(payload []byte) []byte {
	compressed := make([]byte, lz4.CompressBlockBound(len(payload)))
	var c lz4.Compressor
	n, err := c.CompressBlock(payload, compressed)
	if err != nil || n == 0 {
		// incompressible or too small to benefit: store raw, flagged by a
		// zero compressed-length prefix so Decode knows to skip lz4.
		var buf bytes.Buffer
		writeUvarint(&buf, 0)
		writeUvarint(&buf, uint64(len(payload)))
		buf.Write(payload)
		return buf.Bytes()
	}
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(n))
	writeUvarint(&buf, uint64(len(payload)))
	buf.Write(compressed[:n])
	return buf.Bytes()
}

func (lz4Codec) Decode(raw []byte) ([]byte, error) {
	if len(raw) >= len(delobjTag) && string(raw[:len(delobjTag)]) == delobjTag {
		return nil, ErrDeletedObject
	}
	compressedLen, rest, err := readUvarint(raw)
	if err != nil {
		return nil, err
	}
	origLen, rest, err := readUvarint(rest)
	if err != nil {
		return nil, err
	}
	if compressedLen == 0 {
		if uint64(len(rest)) < origLen {
			return nil, fmt.Errorf("blockstore: truncated uncompressed payload")
		}
		return rest[:origLen], nil
	}
	if uint64(len(rest)) < compressedLen {
		return nil, fmt.Errorf("blockstore: truncated compressed payload")
	}
	out := make([]byte, origLen)
	n, err := lz4.UncompressBlock(rest[:compressedLen], out)
	if err != nil {
		return nil, fmt.Errorf("blockstore: lz4 decode: %w", err)
	}
	return out[:n], nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	buf.Write(tmp[:n])
}

func readUvarint(data []byte) (uint64, []byte, error) {
	var v uint64
	var shift uint
	for i, b := range data {
		if b < 0x80 {
			v |= uint64(b) << shift
			return v, data[i+1:], nil
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
		if shift >= 64 {
			return 0, nil, errors.New("blockstore: varint overflow")
		}
	}
	return 0, nil, errors.New("blockstore: truncated varint")
}
