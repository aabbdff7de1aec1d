package main

import (
	"os"

	"github.com/solatis/trapmapper/cmd/trapmapper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
