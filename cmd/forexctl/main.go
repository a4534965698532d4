package main

import (
	"os"

	"forexbot/cmd/forexctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
