package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "stockmarks",
	Short:        "Group retailer search results into browser bookmark folders",
	SilenceUsage: true,
	Long: `stockmarks searches the retailer catalog, asks a language model to arrange the
matching products into attribute folders, and exports the result as a Netscape
bookmark file any browser can import.`,
}

var flagEnv string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "Config environment (default: $ENV or local)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
