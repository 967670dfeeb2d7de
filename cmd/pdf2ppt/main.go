// Command pdf2ppt converts PDF documents into image-per-slide PowerPoint decks.
package main

import (
	"fmt"
	"os"

	"github.com/andresfredes/pdf2ppt/cmd/pdf2ppt/commands"
)

var version = "0.1.0"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
