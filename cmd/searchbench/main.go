// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command searchbench measures lookup cost of four search strategies
// (linear array, linear linked list, binary search, binary search tree)
// across a sweep of dataset sizes.
//
// Usage:
//
//	searchbench run
//	searchbench run bst binary-array --sizes 1000,10000,100000 --seed 7
//	searchbench strategies
//	searchbench history list
//	searchbench config init
//
// Every trial is written to search_results.csv (see --out). Per-size
// statistics are printed as each size finishes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
