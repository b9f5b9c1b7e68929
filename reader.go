// reader.go -- cdb file reader: open, point lookups, full iteration
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
	"bytes"
	"io"
	"os"

	lru "github.com/opencoff/golang-lru"
)

// Reader opens an existing cdb file and answers point lookups and full
// iteration. A Reader is safe for concurrent use by multiple goroutines:
// all access to the underlying file goes through positioned reads
// (io.ReaderAt), so there is no shared cursor to serialize.
type Reader struct {
	f      *os.File
	size   int64
	mt     mainTable
	eod    uint32 // absolute offset where the records region ends
	mapped []byte // non-nil when the file is memory-mapped
	ra     io.ReaderAt

	cache  *lru.ARCCache // optional; nil disables caching
	closed bool
}

// cachedRecord is a decoded-and-bounds-checked record kept in the Reader's
// optional lookup cache, indexed by its absolute file offset.
type cachedRecord struct {
	key []byte
	val []byte
}

// Open opens path read-only and prepares it for lookups. cacheSize, when
// positive, enables an ARC cache of that many decoded records; 0 disables
// caching (every lookup re-reads and re-validates its record).
func Open(path string, cacheSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("open", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioError("stat", err)
	}

	size := st.Size()
	if size < headerSize {
		f.Close()
		return nil, formatError("file too small (%d bytes, need at least %d)", size, headerSize)
	}
	if size > int64(^uint32(0)) {
		f.Close()
		return nil, formatError("file too large (%d bytes, cdb is limited to 4 GiB)", size)
	}

	rd := &Reader{f: f, size: size}

	if b, err := mmapFile(int(f.Fd()), size); err == nil {
		rd.mapped = b
		rd.ra = byteReaderAt(b)
	} else {
		rd.ra = f
	}

	hdr := make([]byte, headerSize)
	if _, err := readFullAt(rd.ra, hdr, 0); err != nil {
		rd.Close()
		return nil, ioError("read header", err)
	}
	rd.mt = decodeMainTable(hdr)
	rd.eod = rd.mt[0].offset

	if cacheSize > 0 {
		c, err := lru.NewARC(cacheSize)
		if err != nil {
			rd.Close()
			return nil, ioError("create lookup cache", err)
		}
		rd.cache = c
	}

	return rd, nil
}

// Close releases the Reader's resources. It is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.cache != nil {
		r.cache.Purge()
	}

	var err error
	if r.mapped != nil {
		err = munmap(r.mapped)
		r.mapped = nil
	}
	if cerr := r.f.Close(); cerr != nil && err == nil {
		err = ioError("close", cerr)
	}
	return err
}

// FindOne returns the first value stored under key, and ok==false if key is
// absent.
func (r *Reader) FindOne(key []byte) (val []byte, ok bool, err error) {
	if r.closed {
		return nil, false, ErrClosed
	}

	it := r.IterKey(key)
	if it.Err() != nil {
		return nil, false, it.Err()
	}
	if !it.HasNext() {
		return nil, false, nil
	}
	v, err := it.Next()
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// FindAll returns every value stored under key, in insertion order.
func (r *Reader) FindAll(key []byte) ([][]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	var out [][]byte
	it := r.IterKey(key)
	for it.HasNext() {
		v, err := it.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, it.Err()
}

// decodeRecordAt reads and bounds-checks the record at absolute offset off,
// consulting (and populating) the lookup cache if enabled.
func (r *Reader) decodeRecordAt(off uint32) (cachedRecord, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(off); ok {
			return v.(cachedRecord), nil
		}
	}

	klen, dlen, err := readPairAt(r.ra, int64(off))
	if err != nil {
		return cachedRecord{}, err
	}
	if klen > MaxLen || dlen > MaxLen {
		return cachedRecord{}, formatError("record at offset %d: length exceeds MaxLen", off)
	}

	buf := make([]byte, klen+dlen)
	if _, err := readFullAt(r.ra, buf, int64(off)+8); err != nil {
		return cachedRecord{}, ioError("short read of record", err)
	}

	rec := cachedRecord{key: buf[:klen:klen], val: buf[klen:]}
	if r.cache != nil {
		r.cache.Add(off, rec)
	}
	return rec, nil
}

// KeyIter streams the values stored under one key, in probe (insertion)
// order. It eagerly buffers one look-ahead value so HasNext never has to
// guess across a hash collision.
type KeyIter struct {
	r      *Reader
	key    []byte
	h      uint32
	subOff uint32
	start  uint32
	cap    uint32
	pos    uint32

	next    []byte
	hasNext bool
	done    bool
	err     error
}

// IterKey returns a lazy sequence of values stored under key.
func (r *Reader) IterKey(key []byte) *KeyIter {
	if r.closed {
		return &KeyIter{err: ErrClosed, done: true}
	}

	h := hash(key)
	subOff, cap, start, ok := r.mt.slotTableInfo(h)
	it := &KeyIter{r: r, key: key, h: h}
	if !ok {
		it.done = true
		return it
	}

	it.start, it.cap = start, cap
	it.subOff = subOff
	it.advance()
	return it
}

// HasNext reports whether Next will return another value.
func (it *KeyIter) HasNext() bool { return it.hasNext }

// Err returns the first error encountered, if any.
func (it *KeyIter) Err() error { return it.err }

// Next returns the next value, or ErrIterExhausted if HasNext is false.
func (it *KeyIter) Next() ([]byte, error) {
	if it.err != nil {
		return nil, it.err
	}
	if !it.hasNext {
		return nil, ErrIterExhausted
	}
	v := it.next
	it.advance()
	return v, nil
}

func (it *KeyIter) advance() {
	if it.done {
		it.hasNext = false
		return
	}

	for it.pos < it.cap {
		slot := (it.start + it.pos) % it.cap
		it.pos++

		slotHash, recOff, err := readPairAt(it.r.ra, int64(it.subOff)+int64(slot)*slotSize)
		if err != nil {
			it.err = err
			it.done = true
			it.hasNext = false
			return
		}
		if slotHash == 0 && recOff == 0 {
			break // empty slot: key is absent past this point
		}
		if slotHash != it.h {
			continue
		}

		rec, err := it.r.decodeRecordAt(recOff)
		if err != nil {
			it.err = err
			it.done = true
			it.hasNext = false
			return
		}
		if bytes.Equal(rec.key, it.key) {
			it.next = rec.val
			it.hasNext = true
			return
		}
	}

	it.done = true
	it.hasNext = false
}

// AllIter streams every (key, value) pair in the records region, in
// insertion order.
type AllIter struct {
	r   *Reader
	pos uint32
	eod uint32

	key, val []byte
	hasNext  bool
	done     bool
	err      error
}

// IterAll returns a lazy sequence over every (key, value) pair in the
// database, in insertion order.
func (r *Reader) IterAll() *AllIter {
	if r.closed {
		return &AllIter{err: ErrClosed, done: true}
	}

	it := &AllIter{r: r, pos: headerSize, eod: r.eod}
	it.advance()
	return it
}

// HasNext reports whether Next will return another pair.
func (it *AllIter) HasNext() bool { return it.hasNext }

// Err returns the first error encountered, if any.
func (it *AllIter) Err() error { return it.err }

// Next returns the next (key, value) pair, or ErrIterExhausted if HasNext
// is false.
func (it *AllIter) Next() (key, val []byte, err error) {
	if it.err != nil {
		return nil, nil, it.err
	}
	if !it.hasNext {
		return nil, nil, ErrIterExhausted
	}
	k, v := it.key, it.val
	it.advance()
	return k, v, nil
}

func (it *AllIter) advance() {
	if it.done {
		it.hasNext = false
		return
	}
	if it.pos >= it.eod {
		it.done = true
		it.hasNext = false
		return
	}

	klen, dlen, err := readPairAt(it.r.ra, int64(it.pos))
	if err != nil {
		it.err = err
		it.done = true
		it.hasNext = false
		return
	}
	if klen > MaxLen || dlen > MaxLen {
		it.err = formatError("record at offset %d: length exceeds MaxLen", it.pos)
		it.done = true
		it.hasNext = false
		return
	}

	buf := make([]byte, klen+dlen)
	if _, err := readFullAt(it.r.ra, buf, int64(it.pos)+8); err != nil {
		it.err = ioError("short read of record", err)
		it.done = true
		it.hasNext = false
		return
	}

	it.key = buf[:klen:klen]
	it.val = buf[klen:]
	it.pos += 8 + klen + dlen
	it.hasNext = true
}

// byteReaderAt adapts a memory-mapped byte slice to io.ReaderAt.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
