package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/grove/post"
)

func init() {
	rootCmd.AddCommand(hashCmd)
}

var hashCmd = &cobra.Command{
	Use:   "hash [secret]",
	Short: "Print the access hash of a secret",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), post.Hash(args[0]))
	},
}
