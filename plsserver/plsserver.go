package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/einspunktnull/sickpls"
)

type sample struct {
	t    time.Time
	prof *sickpls.ScanProfile
}

var (
	bind        = flag.String("bind", ":8080", "addr:port to bind to")
	port        = flag.String("port", "/dev/ttyUSB0", "PLS serial port")
	baudFlag    = flag.String("baud", "38400", "desired session baud rate")
	logpath     = flag.String("logpath", "log", "path to log files")
	static      = flag.String("static", "static", "path to static content")
	logFormat   = flag.String("logformat", "json", "log format -- (gob or json)")
	scanLogFreq = flag.Duration("scanlogfreq", time.Second, "scan log frequency")
	statusFreq  = flag.Duration("statusfreq", time.Minute, "status line frequency")
	useSyslog   = flag.Bool("syslog", false, "log to syslog")

	current = struct {
		prof *sickpls.ScanProfile
		t    time.Time
		mu   sync.Mutex
	}{}

	currentLog = struct {
		name string
		mu   sync.Mutex
	}{}
)

func setCurrent(t time.Time, prof *sickpls.ScanProfile) {
	current.mu.Lock()
	defer current.mu.Unlock()
	current.prof = prof
	current.t = t
}

func getCurrent() (time.Time, *sickpls.ScanProfile) {
	current.mu.Lock()
	defer current.mu.Unlock()
	return current.t, current.prof
}

func setCurrentLogName(name string) {
	currentLog.mu.Lock()
	defer currentLog.mu.Unlock()
	currentLog.name = name
}

func currentLogName() string {
	currentLog.mu.Lock()
	defer currentLog.mu.Unlock()
	return currentLog.name
}

func newScanLogger(w io.Writer) sickpls.ScanLogger {
	if *logFormat == "gob" {
		return sickpls.NewGobScanLogger(w)
	}
	return sickpls.NewJSONScanLogger(w)
}

// logger writes throttled scan samples to a per-session log file.
func logger(ch <-chan sample) {
	var f *os.File
	var lw sickpls.ScanLogger
	var last time.Time

	for s := range ch {
		if time.Since(last) < *scanLogFreq {
			continue
		}
		last = time.Now()

		if f == nil {
			fn := fmt.Sprintf("%v/%v.%v", *logpath,
				time.Now().Format(time.RFC3339), *logFormat)
			var err error
			f, err = os.OpenFile(fn, os.O_RDWR|os.O_CREATE, 0666)
			if err != nil {
				log.Printf("Error creating log file: %v", err)
				continue
			}
			setCurrentLogName(fn)
			lw = newScanLogger(f)
		}

		if err := lw.Log(s.prof, s.t); err != nil {
			log.Printf("Error logging: %v", err)
		}
	}
}

// plsReader owns the driver: it brings the device up and feeds scans
// to the current-scan slot and the logger.
func plsReader(ch chan<- sample) {
	baud := sickpls.StringToBaud(*baudFlag)
	if baud == sickpls.BaudUnknown {
		log.Fatalf("Invalid baud value %q", *baudFlag)
	}

	pls := sickpls.New(*port)
	if err := pls.Initialize(baud); err != nil {
		log.Fatalf("Error initializing PLS: %v", err)
	}

	for {
		prof, err := pls.GetScanProfile()
		if err != nil {
			log.Printf("Failed to read scan: %v", err)
			if err := pls.Reset(); err != nil {
				log.Fatalf("Error resetting PLS: %v", err)
			}
			continue
		}

		t := time.Now()
		setCurrent(t, prof)

		select {
		case ch <- sample{t, prof}:
		default:
		}
	}
}

func statusLogger() {
	for range time.Tick(*statusFreq) {
		t, prof := getCurrent()
		if prof == nil {
			continue
		}
		log.Printf("telegram %v: %v readings as of %v",
			prof.TelegramIndex, len(prof.Measurements), t.Format(time.RFC3339))
	}
}

func handleScan(w http.ResponseWriter, r *http.Request) {
	t, prof := getCurrent()
	if prof == nil {
		http.Error(w, "no scan yet", 503)
		return
	}
	serveJSON(w, r, map[string]interface{}{
		"time": t,
		"scan": prof,
	})
}

func main() {
	flag.Parse()
	initLogging(*useSyslog)

	ch := make(chan sample, 1)
	go logger(ch)
	go plsReader(ch)
	go statusLogger()

	http.HandleFunc("/scan.json", handleScan)
	http.Handle("/logs/", http.StripPrefix("/logs/", logHandler{}))
	http.Handle("/", http.FileServer(http.Dir(*static)))

	log.Fatal(http.ListenAndServe(*bind, nil))
}
