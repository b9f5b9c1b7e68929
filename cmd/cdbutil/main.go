// cdbutil.go -- command line front-end for the cdb library
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// cdbutil is a thin wrapper over the cdb package: it can build a cdb file
// from a cdbmake-format dump, dump an existing cdb file back to that same
// text format, and answer single-key lookups.
package main

import (
	"fmt"
	"os"

	"github.com/opencoff/go-cdb"

	flag "github.com/opencoff/pflag"
)

func main() {
	usage := fmt.Sprintf("%s [options] make|dump|get ...", os.Args[0])

	flag.Usage = func() {
		fmt.Printf("cdbutil - build, inspect, and query cdb files\nUsage: %s\n", usage)
		flag.PrintDefaults()
	}

	if len(os.Args) < 2 {
		die("No sub-command given!\nUsage: %s\n", usage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "make":
		cmdMake(args)
	case "dump":
		cmdDump(args)
	case "get":
		cmdGet(args)
	default:
		die("Unknown sub-command %q\nUsage: %s\n", cmd, usage)
	}
}

// cdbutil make [-t TEMP] DB.cdb DB.dump
func cmdMake(args []string) {
	fs := flag.NewFlagSet("make", flag.ExitOnError)
	temp := fs.StringP("temp", "t", "", "Stage the build at `PATH` instead of next to the output file")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		die("Usage: %s make [options] OUTPUT.cdb INPUT.dump", os.Args[0])
	}

	target, dump := rest[0], rest[1]

	var err error
	if *temp != "" {
		err = cdb.BuildFromDump(target, dump, *temp)
	} else {
		err = cdb.BuildFromDump(target, dump)
	}
	if err != nil {
		die("can't build %s: %s", target, err)
	}
}

// cdbutil dump DB.cdb
func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 1 {
		die("Usage: %s dump DB.cdb", os.Args[0])
	}

	db, err := cdb.Open(rest[0], 0)
	if err != nil {
		die("can't open %s: %s", rest[0], err)
	}
	defer db.Close()

	dw := &stdoutDump{}

	it := db.IterAll()
	for it.HasNext() {
		key, val, err := it.Next()
		if err != nil {
			die("error reading %s: %s", rest[0], err)
		}
		if err := dw.Write(key, val); err != nil {
			die("error writing dump: %s", err)
		}
	}
	if err := it.Err(); err != nil {
		die("error reading %s: %s", rest[0], err)
	}
	if err := dw.Close(); err != nil {
		die("error finishing dump: %s", err)
	}
}

// cdbutil get [-a] DB.cdb KEY
func cmdGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	all := fs.BoolP("all", "a", false, "Print every value stored under KEY")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		die("Usage: %s get [options] DB.cdb KEY", os.Args[0])
	}

	db, err := cdb.Open(rest[0], 1024)
	if err != nil {
		die("can't open %s: %s", rest[0], err)
	}
	defer db.Close()

	key := []byte(rest[1])

	if *all {
		vals, err := db.FindAll(key)
		if err != nil {
			die("lookup failed: %s", err)
		}
		if len(vals) == 0 {
			os.Exit(1)
		}
		for _, v := range vals {
			os.Stdout.Write(v)
			os.Stdout.Write([]byte{'\n'})
		}
		return
	}

	val, ok, err := db.FindOne(key)
	if err != nil {
		die("lookup failed: %s", err)
	}
	if !ok {
		os.Exit(1)
	}
	os.Stdout.Write(val)
	os.Stdout.Write([]byte{'\n'})
}

// stdoutDump writes the same dump grammar as cdb.DumpWriter directly to
// stdout. cdb.DumpWriter always owns a regular file (it fsyncs on Close for
// the atomic-publish path), which doesn't fit a pipe, so the dump
// sub-command writes the grammar by hand instead of through DumpWriter.
type stdoutDump struct{}

func (s *stdoutDump) Write(key, val []byte) error {
	if _, err := fmt.Fprintf(os.Stdout, "+%d,%d:", len(key), len(val)); err != nil {
		return err
	}
	if _, err := os.Stdout.Write(key); err != nil {
		return err
	}
	if _, err := os.Stdout.WriteString("->"); err != nil {
		return err
	}
	if _, err := os.Stdout.Write(val); err != nil {
		return err
	}
	_, err := os.Stdout.WriteString("\n")
	return err
}

func (s *stdoutDump) Close() error {
	_, err := os.Stdout.WriteString("\n")
	return err
}

// die with error
func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", os.Args[0], f)
	s := fmt.Sprintf(z, v...)
	if n := len(s); s[n-1] != '\n' {
		s += "\n"
	}

	os.Stderr.WriteString(s)
	os.Stderr.Sync()
}
