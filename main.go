// Package main provides the entry point for kanataconv.
// kanataconv converts RSD pipeline logs into Kanata logs.
//
// For the full CLI, use: go run ./cmd/kanataconv
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("kanataconv - RSD to Kanata log converter")
	fmt.Println("")
	fmt.Println("Usage: kanataconv [options] <input> <output>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --config   Path to a YAML configuration file")
	fmt.Println("  --stats    Print conversion statistics")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/kanataconv' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/kanataconv' instead.")
	}
}
