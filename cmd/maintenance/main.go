package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("❌ %v", err))
		os.Exit(1)
	}
}
