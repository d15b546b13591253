package main

import (
	"fmt"
	"os"

	"github.com/rezonia/sefaz-bridge/cmd/sefaz-bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
