package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCleanTmpCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "clean-tmp",
		Short: "Remove temp files left behind by interrupted writers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			n, err := st.CleanTemp(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d temp files\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "only remove temp files older than this")
	return cmd
}
