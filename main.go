// =============================================================================
// Invoice Combiner - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Invoice Combiner CLI application.
// It delegates command execution to the cmd package.
//
// USAGE:
//   combiner process        - Combine the files in the input directory
//   combiner detect FILE    - Show the column roles detected in one file
//   combiner query          - Print stored rows as CSV
//   combiner version        - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Detection, standardization, pipeline and storage
//   - pkg/           : File handling utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/invoice-combiner/cmd"
)

func main() {
	cmd.Execute()
}
