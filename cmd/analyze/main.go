// Package main runs one-off analyses of a single mint and prints JSON.
package main

import (
	"os"

	"solana-token-radar/cmd/analyze/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
