// genlctl is a CLI tool for inspecting generic netlink families.
package main

import (
	"fmt"
	"os"

	"github.com/genl-protocol/genl-go/cmd/genlctl/commands"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitCommandError)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var exitCode int
	switch cmd {
	case "list":
		exitCode = commands.RunList(args, os.Stdout, os.Stderr)
	case "resolve":
		exitCode = commands.RunResolve(args, os.Stdout, os.Stderr)
	case "groups":
		exitCode = commands.RunGroups(args, os.Stdout, os.Stderr)
	case "monitor":
		exitCode = commands.RunMonitor(args, os.Stdout, os.Stderr)
	case "shell":
		exitCode = commands.RunShell(args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage()
		exitCode = exitSuccess
	case "version", "-v", "--version":
		fmt.Println("genlctl version 0.1.0")
		exitCode = exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		exitCode = exitCommandError
	}

	os.Exit(exitCode)
}

func printUsage() {
	fmt.Println(`genlctl - generic netlink family inspection tool

Usage:
  genlctl <command> [options] [args...]

Commands:
  list       List all registered generic netlink families
  resolve    Resolve a family name to its numeric identifier
  groups     Show the multicast groups of a family
  monitor    Join a multicast group and print incoming messages
  shell      Start an interactive shell

Options:
  -h, --help     Show this help message
  -v, --version  Show version information

Examples:
  genlctl list
  genlctl resolve nl80211
  genlctl groups --format json nl80211
  genlctl monitor nl80211 scan
  genlctl list --protocol-log /tmp/genl.cborlog

For command-specific help, run:
  genlctl <command> --help`)
}
