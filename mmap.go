// mmap.go -- memory-map a cdb file for the Reader's fast path
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package cdb

import "syscall"

// mmapFile maps the first sz bytes of fd read-only, private.
func mmapFile(fd int, sz int64) ([]byte, error) {
	b, err := syscall.Mmap(fd, 0, int(sz), syscall.PROT_READ, syscall.MAP_PRIVATE)
	if err != nil {
		return nil, ioError("mmap", err)
	}
	return b, nil
}

// munmap releases a mapping obtained from mmapFile. It is a no-op on a nil
// slice so callers can call it unconditionally during cleanup.
func munmap(b []byte) error {
	if b == nil {
		return nil
	}
	if err := syscall.Munmap(b); err != nil {
		return ioError("munmap", err)
	}
	return nil
}
