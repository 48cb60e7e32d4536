package main

import (
	"os"

	"github.com/timmy/wallfeed/cmd/wallfeed/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
