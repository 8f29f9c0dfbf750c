package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// Ctrl-C already reads as an interruption; no message needed.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "sift: %v\n", err)
	}
	os.Exit(1)
}
