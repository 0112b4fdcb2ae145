package main

import (
	"fmt"
	"os"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
