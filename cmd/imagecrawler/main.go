// Command imagecrawler is the operator-facing CLI for the image crawl
// engine.
package main

import (
	"fmt"
	"os"

	"github.com/eulerity/imagecrawler/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
