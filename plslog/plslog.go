package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/einspunktnull/sickpls"
)

var (
	baudFlag = flag.String("baud", "38400", "desired session baud rate")
	count    = flag.Int("count", 0, "number of scans to capture (0 = forever)")
)

func main() {
	log.SetFlags(log.Lmicroseconds)
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatalf("Path to serial port required")
	}

	baud := sickpls.StringToBaud(*baudFlag)
	if baud == sickpls.BaudUnknown {
		log.Fatalf("Invalid baud value %q! Valid values are: 9600, 19200, 38400 and 500000", *baudFlag)
	}

	pls := sickpls.New(flag.Arg(0))
	if err := pls.Initialize(baud); err != nil {
		log.Fatalf("Error initializing device: %v", err)
	}

	log.Printf("Streaming at %v baud: %v deg scans, %v deg resolution",
		pls.SessionBaud(), pls.ScanAngle(), pls.ScanResolution())

	lw := sickpls.NewJSONScanLogger(os.Stdout)
	for i := 0; *count == 0 || i < *count; i++ {
		prof, err := pls.GetScanProfile()
		if err != nil {
			log.Printf("Error getting scan: %v", err)
			continue
		}

		log.Printf("Scan %v: %v readings, telegram index %v",
			i, len(prof.Measurements), prof.TelegramIndex)

		if err := lw.Log(prof, time.Now()); err != nil {
			log.Fatalf("Failed to log scan: %v", err)
		}
	}

	if err := pls.Uninitialize(); err != nil {
		log.Fatalf("Error uninitializing device: %v", err)
	}
}
