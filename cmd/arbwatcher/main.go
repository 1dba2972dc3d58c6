package main

import (
	"github.com/ironcrypto/aero-arb-mm-bot/internal/cli"
)

func main() {
	cli.Execute()
}
