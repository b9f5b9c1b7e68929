// builder.go -- orchestrates a dump-to-cdb build, or a direct streaming one
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
	"fmt"
	"path/filepath"
)

// BuildFromDump reads a cdbmake-format dump from dumpPath and writes a cdb
// file to targetPath, publishing it atomically. The temp file used during
// construction lives next to targetPath unless tempPath is given.
func BuildFromDump(targetPath, dumpPath string, tempPath ...string) error {
	dr, err := OpenDumpReader(dumpPath)
	if err != nil {
		return err
	}
	defer dr.Close()

	w, err := newBuilderWriter(targetPath, tempPath...)
	if err != nil {
		return err
	}

	for dr.HasNext() {
		key, val, err := dr.Next()
		if err != nil {
			w.Abort()
			return err
		}
		if err := w.Add(key, val); err != nil {
			return err
		}
	}
	if err := dr.Err(); err != nil {
		w.Abort()
		return err
	}

	return w.Close()
}

func newBuilderWriter(targetPath string, tempPath ...string) (*Writer, error) {
	if len(tempPath) > 0 && tempPath[0] != "" {
		return NewWriterWithTemp(targetPath, tempPath[0])
	}
	return NewWriter(targetPath)
}

// defaultTempPath mirrors cdbmake's own convention of staging the new file
// in the target directory under a "tmp-" prefix, so the final os.Rename is
// guaranteed to land on the same filesystem as the target.
func defaultTempPath(target string) string {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	return filepath.Join(dir, fmt.Sprintf("tmp-%s.%d", base, rand32()))
}

// Builder is a streaming alternative to BuildFromDump: callers feed records
// one at a time (e.g. from a live source rather than a dump file) and call
// Finish to publish. It wraps a Writer and adds nothing to the on-disk
// format; it exists so callers don't need to reach into Writer's
// construction details.
type Builder struct {
	w *Writer
}

// NewBuilder opens a Builder that will publish atomically to targetPath.
func NewBuilder(targetPath string) (*Builder, error) {
	tmp := defaultTempPath(targetPath)
	w, err := NewWriterWithTemp(targetPath, tmp)
	if err != nil {
		return nil, err
	}
	return &Builder{w: w}, nil
}

// Add stages one (key, value) record.
func (b *Builder) Add(key, val []byte) error {
	return b.w.Add(key, val)
}

// Len returns the number of records staged so far.
func (b *Builder) Len() int {
	return b.w.Len()
}

// Finish finalizes and atomically publishes the database.
func (b *Builder) Finish() error {
	return b.w.Close()
}

// Abort discards all staged records without publishing anything.
func (b *Builder) Abort() {
	b.w.Abort()
}
