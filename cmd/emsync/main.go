// Command emsync keeps a local copy of the employee records store in sync.
package main

import (
	"context"
	"os"

	"github.com/roach88/emsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
