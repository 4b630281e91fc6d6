package main

import (
	"os"

	"github.com/udisondev/courier/cmd/courier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
