// Package main provides the entry point for the tesserae CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tesserae-go/tesserae/cmd/tesserae/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tesserae:", err)
		os.Exit(1)
	}
}
