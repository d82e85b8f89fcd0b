package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/fingertips/cmd/indexer/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
