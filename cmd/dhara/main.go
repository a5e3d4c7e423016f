package main

import (
	"fmt"
	"os"

	"github.com/nandftl/dhara-go/cmd/dhara/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
