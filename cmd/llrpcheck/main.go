package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"circles_go/internal/logging"
	"circles_go/internal/reader"
	"circles_go/sdk"
)

func main() {
	duration := flag.Duration("for", 10*time.Second, "how long to read before stopping")
	verbose := flag.Bool("v", false, "log protocol traffic")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: llrpcheck [-for 10s] [-v] <device-id>")
		os.Exit(2)
	}
	device := flag.Arg(0)

	printLocalInterfaces()
	fmt.Println("")

	opts := sdk.DefaultOptions()
	candidates, err := reader.Candidates(device, opts.Port)
	if err != nil {
		fmt.Printf("device error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("candidates:")
	for i, c := range candidates {
		fmt.Printf("%2d) %s\n", i+1, c.Address())
	}
	fmt.Println("")

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.TraceLevel
	}
	logger := logging.Init("llrpcheck", level, os.Stderr)
	opts.Logger = &logger

	sink := sdk.NewChannelSink(16)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	start := time.Now()
	r, err := sdk.NewLLRPReader(ctx, device, sink, opts)
	fmt.Printf("connect duration: %s\n", time.Since(start).Round(time.Millisecond))
	if err != nil {
		fmt.Printf("connect error: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()
	fmt.Printf("connected: %s\n", r.Endpoint().Address())

	if err := r.StartReading(); err != nil {
		fmt.Printf("start error: %v\n", err)
		os.Exit(1)
	}

	deadline := time.After(*duration)
	snapshots := 0
loop:
	for {
		select {
		case ev := <-sink.Snapshots():
			snapshots++
			list := ev.Tags.Sorted()
			fmt.Printf("[%s] %d tags\n", ev.When.Format("15:04:05.000"), len(list))
			for i, t := range list {
				fmt.Printf("   %2d) %-28s ant=%d rssi=%d\n", i+1, t.ID, t.Antenna, t.Strength)
			}
		case ev := <-sink.Errors():
			fmt.Printf("reader error %s: %s\n", ev.Kind, ev.Message)
			break loop
		case <-deadline:
			break loop
		}
	}

	start = time.Now()
	err = r.StopReading(true)
	fmt.Printf("snapshots: %d\n", snapshots)
	fmt.Printf("stop duration: %s\n", time.Since(start).Round(time.Millisecond))
	if err != nil {
		fmt.Printf("stop error: %v\n", err)
	}
}

func printLocalInterfaces() {
	fmt.Println("local interfaces:")
	ifaces, err := net.Interfaces()
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				fmt.Printf("  - %s : %s\n", iface.Name, ipNet.String())
			}
		}
	}
}
