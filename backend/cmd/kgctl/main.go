// Command kgctl runs operator tasks against the knowledge graph: schema
// setup, collaboration inference, merges, stats and transcript ingestion.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
