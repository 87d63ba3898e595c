package main

import (
	"fmt"
	"os"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/cmd/mobctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
