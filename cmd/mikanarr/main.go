package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"mikanarr/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode returns 2 for configuration errors and 1 for everything else.
func exitCode(err error) int {
	if services.IsFatal(err) {
		return 2
	}
	return 1
}
