// Package main is the entry point for the fuzzmon CLI.
package main

import (
	"github.com/s22625/fuzzmon/internal/cli"
)

func main() {
	cli.Execute()
}
