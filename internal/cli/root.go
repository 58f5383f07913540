// Package cli wires the crawl engine into an operator-facing cobra CLI,
// independent of any HTTP facade built on top of the same core.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "imagecrawler",
	Short: "A polite single-site image harvesting crawler",
	Long:  `imagecrawler walks one site, respecting robots.txt, and reports every image it finds along with a logo classification.`,
}

// Execute runs the CLI, returning any error from the selected subcommand.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(logoCheckCmd)
}
