// Command relc inspects the SQL the relational compiler produces for a
// persistence mapping and a backend capability set.
package main

import (
	"fmt"
	"os"

	"github.com/syssam/relcomp/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
