package main

import (
	"os"

	"github.com/abdidvp/lintfix/internal/adapters/inbound/cli"
)

func main() {
	os.Exit(cli.Execute())
}
