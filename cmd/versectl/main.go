// Command versectl searches a verse corpus from the terminal and manages the
// Postgres copy of it.
//
// Usage:
//
//	versectl search "in the beginning" --limit 5
//	versectl repl
//	versectl import --csv data/t_asv.csv
//	versectl stats
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
