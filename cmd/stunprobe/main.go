// Command stunprobe performs binding discovery against one or more STUN
// servers from a single local socket and prints the mapped addresses.
// With two or more servers it also reports the NAT mapping behavior.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/aethiopicuschan/stund/stun"
)

const defaultServer = "127.0.0.1:3478"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("stunprobe", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	servers := fs.StringSliceP("server", "s", []string{defaultServer}, "STUN server address (host:port), repeatable")
	timeout := fs.DurationP("timeout", "t", 2*time.Second, "overall timeout")
	local := fs.StringP("local", "l", ":0", "local address to bind")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	raddrs := make([]*net.UDPAddr, 0, len(*servers))
	for _, s := range *servers {
		raddr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			fmt.Fprintln(stderr, "failed to resolve STUN server:", err)
			return 1
		}
		raddrs = append(raddrs, raddr)
	}

	laddr, err := net.ResolveUDPAddr("udp", *local)
	if err != nil {
		fmt.Fprintln(stderr, "invalid local address:", err)
		return 1
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		fmt.Fprintln(stderr, "failed to open UDP socket:", err)
		return 1
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	r, err := stun.NewClient().DetectMapping(ctx, conn, raddrs...)
	if err != nil {
		fmt.Fprintln(stderr, "STUN binding request failed:", err)
		return 1
	}

	fmt.Fprintln(stdout, "Local address:", r.Local)
	for i, b := range r.Bindings {
		attr := "MAPPED-ADDRESS"
		if b.XOR {
			attr = "XOR-MAPPED-ADDRESS"
		}
		fmt.Fprintln(stdout, "Server       :", r.Servers[i])
		fmt.Fprintf(stdout, "  Mapped     : %s (%s)\n", b.Mapped, attr)
		if b.Software != "" {
			fmt.Fprintln(stdout, "  Software   :", b.Software)
		}
		fmt.Fprintln(stdout, "  RTT        :", b.RTT)
	}
	fmt.Fprintln(stdout, "Mapping      :", r.Behavior)
	return 0
}
