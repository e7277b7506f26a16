package main

import (
	"os"

	"github.com/maluki2001/LearnKick2-sub002/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
