package main

import (
	"compress/gzip"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/einspunktnull/sickpls"
)

func main() {
	flag.Parse()

	if flag.NArg() != 2 {
		log.Fatalf("Need a source and dest")
	}

	lr, err := sickpls.NewLogReader(flag.Arg(0))
	if err != nil {
		log.Fatalf("Error opening source file: %v", err)
	}
	defer lr.Close()

	destfn := flag.Arg(1)

	f, err := os.Create(destfn)
	if err != nil {
		log.Fatalf("Error creating destination file: %v", err)
	}
	defer f.Close()

	w := io.WriteCloser(f)
	if strings.HasSuffix(destfn, ".gz") {
		gz := gzip.NewWriter(w)
		defer gz.Close()
		w = gz
	}

	neww := sickpls.NewGobScanLogger
	if strings.Contains(destfn, ".json") {
		neww = sickpls.NewJSONScanLogger
	}

	lw := neww(w)

	i := 0
	for {
		e, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Decode error: %v", err)
		}

		if err := lw.Log(e.Data, e.Timestamp); err != nil {
			log.Fatalf("Error logging: %v", err)
		}
		i++
	}

	log.Printf("Copied %v entries", i)
}
