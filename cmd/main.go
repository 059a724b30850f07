package main

import (
	"github.com/auric-network/auric/cmd/cli"
)

func main() {
	cli.Execute()
}
