package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eulerity/imagecrawler/internal/logo"
	"github.com/eulerity/imagecrawler/internal/types"
)

var (
	checkURL    string
	checkWidth  int
	checkHeight int
	checkAlt    string
	checkPage   string
)

var logoCheckCmd = &cobra.Command{
	Use:   "logo-check",
	Short: "Run the logo heuristic against a single image, without crawling",
	RunE: func(cmd *cobra.Command, args []string) error {
		isLogo := logo.Classify(checkURL, checkWidth, checkHeight, checkAlt, checkPage)
		fmt.Printf("is-logo: %t\n", isLogo)
		return nil
	},
}

func init() {
	logoCheckCmd.Flags().StringVar(&checkURL, "url", "", "image URL (required)")
	logoCheckCmd.Flags().IntVar(&checkWidth, "width", types.UnknownDimension, "image width in pixels, or -1 if unknown")
	logoCheckCmd.Flags().IntVar(&checkHeight, "height", types.UnknownDimension, "image height in pixels, or -1 if unknown")
	logoCheckCmd.Flags().StringVar(&checkAlt, "alt", "", "image alt text")
	logoCheckCmd.Flags().StringVar(&checkPage, "page", "", "page URL the image was found on (required)")

	logoCheckCmd.MarkFlagRequired("url")
	logoCheckCmd.MarkFlagRequired("page")
}
