// recpair.go -- little-endian 32-bit pair encode/decode
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package cdb

import (
	"encoding/binary"
	"io"
)

// MaxLen is the maximum permitted length of any single key or value.
const MaxLen = 0x0fffffff

// headerSize is the size in bytes of the MainTable at the head of a cdb
// file: 256 buckets, 8 bytes per bucket.
const headerSize = 256 * 8

// slotSize is the size in bytes of one sub-table slot: (hash, offset).
const slotSize = 8

// writePair writes (a, b) as two little-endian uint32s.
func writePair(w io.Writer, a, b uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], a)
	binary.LittleEndian.PutUint32(buf[4:8], b)
	return writeAll(w, buf[:])
}

// readPair reads two little-endian uint32s from r. It fails with ErrIO if
// fewer than 8 bytes are available.
func readPair(r io.Reader) (a, b uint32, err error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, ioError("short read of pair", err)
	}
	return binary.LittleEndian.Uint32(buf[0:4]), binary.LittleEndian.Uint32(buf[4:8]), nil
}

// readPairAt reads two little-endian uint32s from r at absolute offset off,
// via a positioned read (no shared cursor state).
func readPairAt(r io.ReaderAt, off int64) (a, b uint32, err error) {
	var buf [8]byte
	if _, err := readFullAt(r, buf[:], off); err != nil {
		return 0, 0, ioError("short read of pair", err)
	}
	return binary.LittleEndian.Uint32(buf[0:4]), binary.LittleEndian.Uint32(buf[4:8]), nil
}

// readFullAt is io.ReadFull for an io.ReaderAt at a fixed offset.
func readFullAt(r io.ReaderAt, buf []byte, off int64) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.ReadAt(buf[n:], off+int64(n))
		n += m
		if err != nil {
			if err == io.EOF && n == len(buf) {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}
