// In file: cmd/gateway/main.go

// Command gateway is the composition root of the tool gateway: it loads
// configuration, wires the registry, adapters and dispatcher, and either serves
// the HTTP API or runs single tool operations from the command line.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
