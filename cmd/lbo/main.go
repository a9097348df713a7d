package main

import (
	"os"

	"lbo_valuation/cmd/lbo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
