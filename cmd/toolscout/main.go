// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command toolscout is a CLI client for the toolscout hybrid-search
// pipeline, useful for ad hoc queries without standing up the HTTP server.
//
// Usage:
//
//	toolscout search "free cli tools"
//	toolscout search "AI tools under $50 per month" --json
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "toolscout",
		Short: "Agentic hybrid-search CLI for the tools directory",
	}
	root.AddCommand(newSearchCmd())
	return root
}

func init() {
	slog.SetLogLoggerLevel(slog.LevelWarn)
}
