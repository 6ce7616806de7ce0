package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/einspunktnull/sickpls"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Path to serial port required")
	}

	pls := sickpls.New(os.Args[1])
	if err := pls.Initialize(sickpls.Baud9600); err != nil {
		log.Fatalf("Error initializing device: %v", err)
	}

	st, err := pls.GetStatus()
	if err != nil {
		log.Fatalf("Error getting status: %v", err)
	}

	log.Printf("Device %v is %v", pls.DevicePath(), st)

	err = json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
		"status":          st.String(),
		"session_baud":    pls.SessionBaud().String(),
		"scan_angle":      pls.ScanAngle(),
		"scan_resolution": pls.ScanResolution(),
		"units":           pls.MeasuringUnits().String(),
		"operating_mode":  pls.OperatingMode().String(),
	})
	if err != nil {
		log.Fatalf("Error writing JSON: %v", err)
	}

	if err := pls.Uninitialize(); err != nil {
		log.Fatalf("Error uninitializing device: %v", err)
	}
}
