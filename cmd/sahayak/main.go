// Command sahayak is the entry point for the Gramin Sahayak rural banking
// assistant. It indexes government scheme documents into a local vector
// index and answers questions in plain Hindi, via a CLI or an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/gramin-sahayak/sahayak-go/cmd/sahayak/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
