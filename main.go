// Package main is the entry point for the tinu TCP-in-UDP transcoder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/tinu/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
