// Package main is the entry point for the hnswctl CLI.
//
// Usage:
//
//	hnswctl [flags] <command> [args]
//
// Commands:
//
//	add      - Store a labelled image and index it
//	search   - Find the stored images most similar to an image
//	list     - List stored records
//	label    - Change the label of a record
//	delete   - Delete a record and its image
//	inspect  - Show index parameters and per-layer statistics
//	export   - Write the index graph as an Arrow IPC stream
package main

import (
	"fmt"
	"os"

	"github.com/idebroy/hnsw/cmd/hnswctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
