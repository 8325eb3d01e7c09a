package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Print the stored stats of one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			path := args[0]
			h, err := st.ReadHeader(path)
			if err != nil {
				return err
			}
			fi, err := os.Stat(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "function: %s\n", h.Stats.FunctionName)
			fmt.Fprintf(out, "digest:   %s\n", h.Digest)
			fmt.Fprintf(out, "wall:     %s\n", h.Stats.Wall().Round(time.Microsecond))
			fmt.Fprintf(out, "cpu:      %s\n", h.Stats.CPU().Round(time.Microsecond))
			fmt.Fprintf(out, "saved:    %s (%s)\n", h.Stats.SaveDate.Format(time.RFC3339), humanize.Time(h.Stats.SaveDate))
			fmt.Fprintf(out, "size:     %s\n", humanize.Bytes(uint64(fi.Size())))
			return nil
		},
	}
}
