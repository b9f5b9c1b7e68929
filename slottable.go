// slottable.go -- MainTable decode and per-bucket probe geometry
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package cdb

import "encoding/binary"

// bucketInfo is one of the 256 MainTable entries: where a bucket's
// sub-table lives and how many slots it has.
type bucketInfo struct {
	offset  uint32
	entries uint32
}

// mainTable is the decoded 2048-byte header: one bucketInfo per possible
// hash-mod-256 value.
type mainTable [256]bucketInfo

// decodeMainTable decodes the 2048-byte MainTable. b must be exactly
// headerSize bytes.
func decodeMainTable(b []byte) mainTable {
	var mt mainTable
	for i := range mt {
		off := i * 8
		mt[i] = bucketInfo{
			offset:  binary.LittleEndian.Uint32(b[off : off+4]),
			entries: binary.LittleEndian.Uint32(b[off+4 : off+8]),
		}
	}
	return mt
}

// encode serializes the MainTable back into its 2048-byte wire form.
func (mt mainTable) encode() []byte {
	b := make([]byte, headerSize)
	for i, bi := range mt {
		off := i * 8
		binary.LittleEndian.PutUint32(b[off:off+4], bi.offset)
		binary.LittleEndian.PutUint32(b[off+4:off+8], bi.entries)
	}
	return b
}

// slotTableInfo yields the sub-table offset, its slot count, and the first
// probe index for a key with hash h. ok is false when the bucket is empty.
func (mt mainTable) slotTableInfo(h uint32) (subOff uint32, cap uint32, start uint32, ok bool) {
	bi := mt[hashMod256(h)]
	if bi.entries == 0 {
		return 0, 0, 0, false
	}
	return bi.offset, bi.entries, hashDiv256(h) % bi.entries, true
}
