// rand.go -- random suffixes for temp file names
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
	"crypto/rand"
	"encoding/binary"
	"io"
)

// rand32 returns a random uint32, used only to make temp-file names
// collision-resistant. It is not used anywhere in the on-disk format.
func rand32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("cdb: can't read crypto/rand")
	}
	return binary.BigEndian.Uint32(b[:])
}
