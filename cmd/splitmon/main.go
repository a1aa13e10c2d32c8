// Command splitmon follows the USB console of one or both keyboard halves
// and reports link supervision events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"splitlink-go/services/monitor"
)

func main() {
	var (
		configFlag = flag.String("config", "splitmon.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Serial port override for the first half (e.g., /dev/ttyACM0)")
		peerFlag   = flag.String("peer", "", "Serial port of the second half, if attached")
		minFlag    = flag.String("min", "", "Minimum severity to print: info, warning or critical")
		rawFlag    = flag.Bool("raw", false, "Echo console lines that are not diagnostics")
		listFlag   = flag.Bool("list", false, "List serial ports and exit")
		saveFlag   = flag.Bool("save", false, "Write the effective configuration back to -config and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := monitor.Ports()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := monitor.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Halves[0].Port = *portFlag
	}
	if *peerFlag != "" {
		peer := monitor.HalfConfig{Name: "peer", Port: *peerFlag, Baud: monitor.DefaultBaudRate}
		if len(cfg.Halves) > 1 {
			cfg.Halves[1].Port = peer.Port
		} else {
			cfg.Halves = append(cfg.Halves, peer)
		}
	}
	if *minFlag != "" {
		cfg.Filter.MinSeverity = *minFlag
	}
	if *rawFlag {
		cfg.Display.ShowRaw = true
	}

	if *saveFlag {
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatalf("Failed to save configuration: %v", err)
		}
		return
	}

	mon, err := monitor.New(cfg, monitor.OpenSerial, log.New(os.Stdout, "", log.Ltime|log.Lmicroseconds))
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon.Run(ctx)
	mon.Summary()
}
