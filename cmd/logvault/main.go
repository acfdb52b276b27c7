package main

import (
	"fmt"
	"os"

	"github.com/logvault/logvault/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "logvault:", err)
		os.Exit(1)
	}
}
