package main

import (
	"github.com/aumai/agentci/cmd"
)

func main() {
	cmd.Execute()
}
