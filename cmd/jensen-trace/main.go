// Command jensen-trace is a tool for viewing and analyzing Jensen
// protocol trace files.
//
// Trace files are created by passing a trace path to hidock-cli (or by
// wiring a log.FileLogger into a jensen.Client).
//
// Usage:
//
//	jensen-trace <command> [flags] <file.jtrace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSONL or CSV format
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	jensen-trace view session.jtrace
//
//	# View only discarded wire traffic for one command
//	jensen-trace view --command GET_FILE_LIST session.jtrace
//
//	# Export to JSONL
//	jensen-trace export --format jsonl session.jtrace
//
//	# Show statistics
//	jensen-trace stats session.jtrace
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jensen-protocol/jensen-go/cmd/jensen-trace/commands"
)

const usage = `jensen-trace - Jensen Protocol Trace Analyzer

Usage:
  jensen-trace <command> [flags] <file.jtrace>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSONL or CSV format
  stats    Show statistics about the trace file

Use "jensen-trace <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `jensen-trace view - View trace file in human-readable format

Usage:
  jensen-trace view [flags] <file.jtrace>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (transport, wire, session)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (command, keepalive, state, error)")
	command := fs.String("command", "", "Filter by command name or ID (GET_FILE_LIST, 0x0004)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	var filter commands.ViewFilter
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		fatalOn(err)
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		fatalOn(err)
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		fatalOn(err)
		filter.Category = &c
	}
	if *command != "" {
		id, err := commands.ParseCommandFlag(*command)
		fatalOn(err)
		filter.CommandID = &id
	}

	fatalOn(commands.RunView(path, filter, os.Stdout))
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", commands.FormatJSONL, "Output format (jsonl, csv)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	fatalOn(commands.RunExport(path, *format, os.Stdout))
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	fatalOn(commands.RunStats(path, os.Stdout))
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatalOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
