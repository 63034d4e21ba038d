// Package main is the entry point for the mondo CLI tool.
package main

import (
	"os"

	"github.com/marcopeg/mondo-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
