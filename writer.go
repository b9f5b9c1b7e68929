// writer.go -- streams records into a new cdb file and builds the tables
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
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// bucketEntry records one (hash, record offset) pair awaiting placement
// into its bucket's sub-table at Close.
type bucketEntry struct {
	hash uint32
	off  uint32
}

// Writer streams (key, value) records into a new cdb file and, on Close,
// materializes the 256 sub-tables and the MainTable header. A Writer is
// single-threaded: exactly one goroutine may hold it at a time.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	off     uint64 // current write cursor
	buckets [256][]bucketEntry
	nrec    int

	builtTable mainTable // filled by finalize, consumed by Close

	tmp    string // non-empty in atomic-publish mode
	target string
	closed bool
}

// NewWriter opens a Writer that publishes atomically: records are written
// to a temp file next to path (same directory, and therefore guaranteed to
// share a filesystem with path), and Close renames it onto path.
func NewWriter(path string) (*Writer, error) {
	tmp := fmt.Sprintf("%s.tmp.%d", path, rand32())
	return newWriter(tmp, path, true)
}

// NewWriterWithTemp is like NewWriter but lets the caller pick the temp
// file location explicitly (used by Builder to honor a caller-supplied
// temp path).
func NewWriterWithTemp(path, tempPath string) (*Writer, error) {
	return newWriter(tempPath, path, true)
}

// NewDirectWriter opens path itself for write+truncate; Close finalizes it
// in place with no atomic publish step. If Close fails partway through,
// the file is left corrupt -- callers should prefer NewWriter for any
// production use.
func NewDirectWriter(path string) (*Writer, error) {
	return newWriter(path, path, false)
}

func newWriter(writePath, target string, atomicPublish bool) (*Writer, error) {
	f, err := os.OpenFile(writePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, ioError("create", err)
	}

	w := &Writer{
		f:      f,
		w:      bufio.NewWriterSize(f, 64*1024),
		off:    headerSize,
		target: target,
	}
	if atomicPublish {
		w.tmp = writePath
	}

	var zero [headerSize]byte
	if err := writeAll(w.w, zero[:]); err != nil {
		w.cleanup()
		return nil, err
	}

	return w, nil
}

// Len returns the total number of records added so far (including
// duplicate keys).
func (w *Writer) Len() int {
	return w.nrec
}

// Add appends one (key, value) record.
func (w *Writer) Add(key, val []byte) error {
	if w.closed {
		return ErrClosed
	}
	if len(key) > MaxLen {
		w.Abort()
		return ErrKeyTooLarge
	}
	if len(val) > MaxLen {
		w.Abort()
		return ErrValueTooLarge
	}

	recsz := uint64(8 + len(key) + len(val))
	if w.off+recsz > uint64(^uint32(0)) {
		w.Abort()
		return ErrTooLarge
	}

	off := uint32(w.off)
	h := hash(key)

	if err := writePair(w.w, uint32(len(key)), uint32(len(val))); err != nil {
		w.Abort()
		return err
	}
	if err := writeAll(w.w, key); err != nil {
		w.Abort()
		return err
	}
	if err := writeAll(w.w, val); err != nil {
		w.Abort()
		return err
	}

	w.off += recsz
	w.nrec++

	b := hashMod256(h)
	w.buckets[b] = append(w.buckets[b], bucketEntry{hash: h, off: off})
	return nil
}

// Close finalizes the database: it materializes the 256 sub-tables, writes
// the MainTable header, flushes and closes the file, and (in atomic-publish
// mode) renames the temp file onto the target path. It is idempotent.
//
// On any failure, the temp file (if any) is removed and the target is left
// untouched; in direct mode a failure may leave the target file corrupt.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.finalize(); err != nil {
		w.cleanup()
		return err
	}

	if err := w.w.Flush(); err != nil {
		w.cleanup()
		return ioError("flush", err)
	}
	if err := w.f.Sync(); err != nil {
		w.cleanup()
		return ioError("sync", err)
	}

	// Rewrite the header now that every sub-table offset/length is known.
	if _, err := w.f.WriteAt(w.builtTable.encode(), 0); err != nil {
		w.cleanup()
		return ioError("write header", err)
	}
	if err := w.f.Sync(); err != nil {
		w.cleanup()
		return ioError("sync header", err)
	}
	if err := w.f.Close(); err != nil {
		if w.tmp != "" {
			os.Remove(w.tmp)
		}
		return ioError("close", err)
	}

	if w.tmp != "" {
		if err := os.Rename(w.tmp, w.target); err != nil {
			os.Remove(w.tmp)
			return ioError("publish", err)
		}
	}
	return nil
}

// Abort discards all output written so far without publishing anything.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.cleanup()
}

func (w *Writer) cleanup() {
	w.f.Close()
	if w.tmp != "" {
		os.Remove(w.tmp)
	}
}

// finalize builds every sub-table, in memory, one bucket at a time, and
// appends each to the tail of the file. It records the resulting MainTable
// for Close to write back to the header.
func (w *Writer) finalize() error {
	var mt mainTable
	s := w.off

	for i := 0; i < 256; i++ {
		entries := w.buckets[i]
		n := len(entries)

		mt[i].offset = uint32(s)

		if n == 0 {
			mt[i].entries = 0
			continue
		}

		cap := uint32(2 * n)
		mt[i].entries = cap

		if s+uint64(cap)*slotSize > uint64(^uint32(0)) {
			return ErrTooLarge
		}

		slots := make([]bucketEntry, cap)
		for _, e := range entries {
			j := hashDiv256(e.hash) % cap
			for slots[j].hash != 0 || slots[j].off != 0 {
				j = (j + 1) % cap
			}
			slots[j] = e
		}

		buf := make([]byte, cap*slotSize)
		for k, e := range slots {
			o := k * slotSize
			binary.LittleEndian.PutUint32(buf[o:o+4], e.hash)
			binary.LittleEndian.PutUint32(buf[o+4:o+8], e.off)
		}
		if err := writeAll(w.w, buf); err != nil {
			return err
		}

		s += uint64(cap) * slotSize
	}

	w.builtTable = mt
	return nil
}
