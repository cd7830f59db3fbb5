package main

import (
	"os"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
