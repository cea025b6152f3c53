package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/daycast/internal/app"
)

// ldflagsで埋め込むバージョン情報
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("daycast %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
