package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/einspunktnull/sickpls"
)

var (
	wideFormat = flag.Bool("wide", false, "emit wide format csv")
	logFmt     = flag.String("format", "gob", "log format -- (gob or json)")
)

func main() {
	flag.Parse()

	ls, err := sickpls.NewLogReaderStream(os.Stdin, *logFmt)
	if err != nil {
		log.Fatalf("Couldn't open log reader: %v", err)
	}

	convert := sickpls.NewLongCSVReader
	if *wideFormat {
		convert = sickpls.NewWideCSVReader
	}

	io.Copy(os.Stdout, convert(ls))
}
