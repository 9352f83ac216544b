// Command dbfx is the thin command-surface companion to the dbf/dbt/ndx/mdx
// packages: it opens a table (and its paired DBT/NDX/MDX files) and prints
// records, deletion flags, and index lookups with lipgloss styling. It never
// implements engine logic itself — every operation below is a direct call
// into the library packages.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mkfoss/dbfx/config"
	"github.com/mkfoss/dbfx/dbf"
	"github.com/mkfoss/dbfx/internal/styles"
	"github.com/mkfoss/dbfx/mdx"
	"github.com/mkfoss/dbfx/ndx"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "dump":
		err = dump(os.Args[2])
	case "find":
		if len(os.Args) < 5 {
			usage()
			os.Exit(1)
		}
		err = find(os.Args[2], os.Args[3], os.Args[4])
	case "ndx-find":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		err = ndxFind(os.Args[2], os.Args[3])
	case "mdx-dump":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		err = mdxDump(os.Args[2], os.Args[3])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Println(styles.Error(err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(styles.Header("dbfx - dBase table/index inspector"))
	fmt.Println(styles.Example("dump <table.dbf>", "print the structure and every record"))
	fmt.Println(styles.Example("find <table.dbf> <field> <value>", "linear-scan for a record"))
	fmt.Println(styles.Example("ndx-find <index.ndx> <value>", "look up a key in a single-key index"))
	fmt.Println(styles.Example("mdx-dump <index.mdx> <tag>", "list a tag's keys top-to-bottom"))
}

func dump(path string) error {
	table, err := dbf.Open(path, config.Default())
	if err != nil {
		return err
	}
	defer table.Close()

	s := table.Structure()
	fmt.Println(styles.ActionHeader("Structure of " + path))
	for i := 1; i <= s.FieldCount(); i++ {
		f, _ := s.FieldAt(i)
		fmt.Println(styles.FileOperation(f.Type().DisplayName(), fmt.Sprintf("%s (%d.%d)", f.Name(), f.Length(), f.Decimals())))
	}

	fmt.Println()
	fmt.Println(styles.ActionHeader("Records"))
	if err := table.Top(); err != nil {
		return err
	}
	for !table.EOF() && !table.BOF() {
		tag := " "
		if table.Deleted() {
			tag = "*"
		}
		fmt.Printf("%s #%d ", tag, table.RecordNumber())
		for i := 1; i <= s.FieldCount(); i++ {
			f, _ := s.FieldAt(i)
			v, err := table.Value(f.Name())
			if err != nil {
				return err
			}
			fmt.Printf("%s=%s ", f.Name(), v.String())
		}
		fmt.Println()
		if err := table.GotoRecord(table.RecordNumber() + 1); err != nil {
			return err
		}
	}
	return nil
}

func find(path, field, value string) error {
	table, err := dbf.Open(path, config.Default())
	if err != nil {
		return err
	}
	defer table.Close()

	n, err := table.Find(field, value)
	if err != nil {
		return err
	}
	if n == dbf.RecordNumberEOF {
		fmt.Println(styles.Warning(fmt.Sprintf("no record has %s = %q", field, value)))
		return nil
	}
	fmt.Println(styles.Success(fmt.Sprintf("found at record #%d", n)))
	return nil
}

func ndxFind(path, value string) error {
	idx, err := ndx.Open(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := idx.Find(value)
	if err != nil {
		return err
	}
	if n == ndx.RecordNumberEOF {
		fmt.Println(styles.Warning("no key matched"))
		return nil
	}
	fmt.Println(styles.Success(fmt.Sprintf("record #%d", n)))
	return nil
}

func mdxDump(path, tagName string) error {
	mf, err := mdx.Open(path, nil)
	if err != nil {
		return err
	}
	defer mf.Close()

	cursor := mf.NewCursor()
	if !cursor.SetTag(tagName) {
		return fmt.Errorf("tag %q not found", tagName)
	}

	n, err := cursor.GotoTop()
	if err != nil {
		return err
	}
	fmt.Println(styles.ActionHeader("Tag " + tagName))
	for n != mdx.RecordNumberEOF {
		fmt.Println(styles.FileOperation("record", strconv.Itoa(n)))
		n, err = cursor.Next()
		if err != nil {
			return err
		}
	}
	return nil
}
