// Command wonder manages a local library of writing projects.
package main

import (
	"os"

	"github.com/mesh-intelligence/wonder/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
