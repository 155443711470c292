package main

import (
	"github.com/maxmcd/envspec/internal/command"
)

func main() {
	command.RunCLI()
}
