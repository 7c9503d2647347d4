// Command vxi11ctl is a CLI client for the VXI-11 TCP/IP Instrument
// Protocol: portmapper discovery, SCPI command/query, and SRQ monitoring.
package main

import (
	"fmt"
	"os"

	"github.com/scopebridge/vxi11/cmd/vxi11ctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
