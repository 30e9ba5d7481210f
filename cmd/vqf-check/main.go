// vqf-check is a diagnostic tool for inspecting and validating vqf-server
// snapshot files. It loads a snapshot through the same internal/persist path
// the server uses, then re-derives the structural invariants a healthy
// filter must satisfy and reports the first one it finds violated.
//
// This tool is the first line of defense when troubleshooting a filter that
// is returning unexpected results or that failed to load. It can answer
// questions like:
//
//   - Is the snapshot file corrupted (bad magic, truncated, bad checksum)?
//   - Does every block's metadata word still encode a valid run structure?
//   - Does the declared element count match a full scan of every block?
//   - Is the declared bucket range consistent with the block count?
//
// Usage
//
//	vqf-check --file snapshot.vqf
//	vqf-check --file snapshot.vqf --verbose
//
// Exit Codes
//
// 0: The snapshot is structurally valid.
// 1: The snapshot is corrupted or inconsistent; a diagnostic was printed.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"

	"vqf.sievelabs.dev/internal/persist"
)

var (
	app     = kingpin.New("vqf-check", "Validate a vqf-server snapshot file.")
	file    = app.Flag("file", "Path to the snapshot file.").Required().String()
	verbose = app.Flag("verbose", "Print per-block diagnostics even when the snapshot is valid.").Short('v').Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	f, err := persist.Load(afero.NewOsFs(), *file)
	if err != nil {
		die("failed to load snapshot: %v", err)
	}

	if err := validate(f, *verbose, os.Stdout); err != nil {
		die("%v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[fatal] "+format+"\n", args...)
	os.Exit(1)
}
