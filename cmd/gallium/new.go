package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smercer/gallium/internal/scaffold"
)

var newCollectionYear int

var newCmd = &cobra.Command{
	Use:   "new <site-dir>",
	Short: "Create a new gallery site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := scaffold.NewSite(args[0]); err != nil {
			return err
		}
		fmt.Printf("Created new site in %s\n", args[0])
		fmt.Printf("Drop images into %s/photos/<year>/<collection>/ and run: gallium build\n", args[0])
		return nil
	},
}

var newCollectionCmd = &cobra.Command{
	Use:   "collection <title>",
	Short: "Create a new photo collection in the current site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := scaffold.NewCollection(".", args[0], newCollectionYear)
		if err != nil {
			return err
		}
		fmt.Printf("Created collection in %s\n", dir)
		return nil
	},
}

func init() {
	newCollectionCmd.Flags().IntVar(&newCollectionYear, "year", 0, "collection year (defaults to current year)")
	newCmd.AddCommand(newCollectionCmd)
	rootCmd.AddCommand(newCmd)
}
