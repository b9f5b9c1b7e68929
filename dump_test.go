// dump_test.go -- test suite for the cdbmake dump format
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
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"
)

func tempFileName(prefix string) string {
	return fmt.Sprintf("%s/%s%d", os.TempDir(), prefix, rand.Int())
}

func TestDumpRoundTrip(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	dw, err := NewDumpWriter(fn)
	assert(err == nil, "can't create dump writer: %s", err)

	for _, s := range keyw {
		err = dw.Write([]byte(s), []byte("v-"+s))
		assert(err == nil, "write %s failed: %s", s, err)
	}
	err = dw.Close()
	assert(err == nil, "close failed: %s", err)

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "can't open dump: %s", err)

	var got []string
	for dr.HasNext() {
		k, v, err := dr.Next()
		assert(err == nil, "next failed: %s", err)
		assert(string(v) == "v-"+string(k), "value mismatch for %s: saw %s", k, v)
		got = append(got, string(k))
	}
	assert(dr.Err() == nil, "reader ended with error: %s", dr.Err())
	assert(len(got) == len(keyw), "record count mismatch; exp %d, saw %d", len(keyw), len(got))
}

func TestDumpEmpty(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	dw, err := NewDumpWriter(fn)
	assert(err == nil, "can't create dump writer: %s", err)
	assert(dw.Close() == nil, "close failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "can't open dump: %s", err)
	assert(!dr.HasNext(), "empty dump reported a record")
	assert(dr.Err() == nil, "empty dump reported error: %s", dr.Err())
}

func TestDumpEmptyKeyOrValue(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	dw, err := NewDumpWriter(fn)
	assert(err == nil, "can't create dump writer: %s", err)
	assert(dw.Write([]byte(""), []byte("v")) == nil, "write empty key failed")
	assert(dw.Write([]byte("k"), []byte("")) == nil, "write empty value failed")
	assert(dw.Close() == nil, "close failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "can't open dump: %s", err)

	assert(dr.HasNext(), "expected a record")
	k, v, err := dr.Next()
	assert(err == nil, "next failed: %s", err)
	assert(len(k) == 0 && string(v) == "v", "record 1 mismatch: %q/%q", k, v)

	assert(dr.HasNext(), "expected a second record")
	k, v, err = dr.Next()
	assert(err == nil, "next failed: %s", err)
	assert(string(k) == "k" && len(v) == 0, "record 2 mismatch: %q/%q", k, v)

	assert(!dr.HasNext(), "expected end of dump")
}

func TestDumpMalformedPrefix(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	assert(os.WriteFile(fn, []byte("*5,1:hello->x\n\n"), 0644) == nil, "setup failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "open failed: %s", err)
	assert(!dr.HasNext(), "malformed dump reported a record")
	assert(errors.Is(dr.Err(), ErrFormat), "expected ErrFormat, saw %s", dr.Err())
}

func TestDumpMalformedLength(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	assert(os.WriteFile(fn, []byte("+5x,1:hello->x\n\n"), 0644) == nil, "setup failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "open failed: %s", err)
	assert(dr.HasNext(), "prefix byte alone should look like a record")
	_, _, err = dr.Next()
	assert(errors.Is(err, ErrFormat), "expected ErrFormat, saw %s", err)
}

func TestDumpMissingSeparator(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	assert(os.WriteFile(fn, []byte("+5,1:helloXx\n\n"), 0644) == nil, "setup failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "open failed: %s", err)
	assert(dr.HasNext(), "expected a record attempt")
	_, _, err = dr.Next()
	assert(errors.Is(err, ErrFormat), "expected ErrFormat, saw %s", err)
}

func TestDumpTruncated(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	assert(os.WriteFile(fn, []byte("+5,10:hello->x"), 0644) == nil, "setup failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "open failed: %s", err)
	assert(dr.HasNext(), "expected a record attempt")
	_, _, err = dr.Next()
	assert(err != nil, "expected a failure on truncated value")
}

func TestDumpMissingTrailer(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	assert(os.WriteFile(fn, []byte("+1,1:a->b\n"), 0644) == nil, "setup failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "open failed: %s", err)

	assert(dr.HasNext(), "expected the one complete record")
	k, v, err := dr.Next()
	assert(err == nil, "next failed: %s", err)
	assert(string(k) == "a" && string(v) == "b", "record mismatch: %q/%q", k, v)

	assert(!dr.HasNext(), "expected end of dump at eof")
	assert(errors.Is(dr.Err(), ErrFormat), "missing trailer should be ErrFormat, saw %s", dr.Err())
}

func TestDumpEmptyFile(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	assert(os.WriteFile(fn, nil, 0644) == nil, "setup failed")

	dr, err := OpenDumpReader(fn)
	assert(err == nil, "open failed: %s", err)
	assert(!dr.HasNext(), "0-byte dump reported a record")
	assert(errors.Is(dr.Err(), ErrFormat), "0-byte dump should be ErrFormat, saw %s", dr.Err())
}

func TestDumpAtomicPublish(t *testing.T) {
	assert := newAsserter(t)

	fn := tempFileName("cdbdump")
	defer os.Remove(fn)

	dw, err := NewDumpWriterAtomic(fn)
	assert(err == nil, "can't create atomic dump writer: %s", err)
	assert(dw.Write([]byte("a"), []byte("b")) == nil, "write failed")

	_, statErr := os.Stat(fn)
	assert(os.IsNotExist(statErr), "target file appeared before Close")

	assert(dw.Close() == nil, "close failed")
	_, statErr = os.Stat(fn)
	assert(statErr == nil, "target file missing after Close: %s", statErr)
}
