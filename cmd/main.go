package main

import (
	"os"

	cli2 "github.com/Perafan18/chain-forge/cli"
)

func main() {
	defer os.Exit(0)

	cli := cli2.CommandLine{}
	cli.Run()
}
