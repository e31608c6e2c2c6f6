package main

import (
	"github.com/metacrafters/atm/app/wallet/cli/cmd"
)

func main() {
	cmd.Execute()
}
