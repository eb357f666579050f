package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribelab/pdfscribe/internal/language"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported document languages",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, key := range language.DisplayKeys() {
			fmt.Println(key)
		}
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
