package main

import (
	"os"

	"github.com/platinummonkey/pawndoc/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
