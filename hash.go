// hash.go -- the cdb key hash function
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package cdb

// hash computes D. J. Bernstein's cdb hash over b. The algorithm is fixed
// by the cdb file format; any deviation produces a file unreadable by
// other cdb implementations.
//
//	h := 5381
//	for each byte c: h = ((h << 5) + h) ^ c   (mod 2^32)
func hash(b []byte) uint32 {
	h := uint32(5381)
	for _, c := range b {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return h
}

// hashMod256 selects the MainTable bucket for a hash value.
func hashMod256(h uint32) uint32 {
	return h & 0xff
}

// hashDiv256 is the initial probe index within a bucket's sub-table,
// before reducing modulo the sub-table's capacity.
func hashDiv256(h uint32) uint32 {
	return h >> 8
}
