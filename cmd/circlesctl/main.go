package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"circles_go/internal/ipc"
)

const usage = `usage: circlesctl [-socket path] <command>

commands:
  start <device>   start reading from a reader (device id, e.g. fx9600749620)
  stop [-await]    stop reading; -await waits for the reader to confirm
  status           print the current session
  snapshot         print the latest tag snapshot and recent errors`

func main() {
	socket := flag.String("socket", envOr("CIRCLES_IPC_SOCKET", "/tmp/circles-reader.sock"), "control socket path")
	timeout := flag.Duration("timeout", 20*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	req, err := buildRequest(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	resp, err := ipc.Call(context.Background(), *socket, req, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	printResponse(resp)
	if !resp.OK {
		os.Exit(1)
	}
}

func buildRequest(args []string) (ipc.Request, error) {
	if len(args) == 0 {
		return ipc.Request{}, fmt.Errorf("missing command")
	}
	switch args[0] {
	case ipc.CmdStart:
		if len(args) != 2 {
			return ipc.Request{}, fmt.Errorf("start needs exactly one device id")
		}
		return ipc.Request{Type: ipc.CmdStart, Device: args[1]}, nil
	case ipc.CmdStop:
		fs := flag.NewFlagSet("stop", flag.ContinueOnError)
		await := fs.Bool("await", false, "wait for the reader to confirm the stop")
		if err := fs.Parse(args[1:]); err != nil {
			return ipc.Request{}, err
		}
		return ipc.Request{Type: ipc.CmdStop, Await: *await}, nil
	case ipc.CmdStatus, ipc.CmdSnapshot:
		return ipc.Request{Type: args[0]}, nil
	}
	return ipc.Request{}, fmt.Errorf("unknown command %q", args[0])
}

func printResponse(resp ipc.Response) {
	if !resp.OK {
		fmt.Printf("error (%s): %s\n", resp.Kind, resp.Error)
		return
	}

	if resp.Session != nil {
		fmt.Printf("reading=%v session=%s device=%s backend=%s since=%s\n",
			resp.Reading,
			resp.Session.ID,
			resp.Session.Device,
			resp.Session.Backend,
			resp.Session.StartedAt.Format(time.RFC3339),
		)
	} else {
		fmt.Printf("reading=%v\n", resp.Reading)
	}

	if resp.Snapshot != nil {
		list := resp.Snapshot.Tags.Sorted()
		fmt.Printf("snapshot at %s: %d tags\n", resp.Snapshot.When.Format("15:04:05.000"), len(list))
		for i, t := range list {
			fmt.Printf("%3d) %-28s ant=%d rssi=%d\n", i+1, t.ID, t.Antenna, t.Strength)
		}
	}
	for _, e := range resp.Errors {
		fmt.Printf("error %s %s: %s\n", e.When.Format("15:04:05"), e.Kind, e.Message)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
