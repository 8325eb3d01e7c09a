package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

func newLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [pattern]",
		Short: "List cache entries, optionally fuzzy-filtered by function label",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			entries, err := st.Entries()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				entries = filterEntries(entries, args[0])
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DIGEST\tFUNCTION\tSIZE\tSAVED\tWALL")
			var total int64
			for _, e := range entries {
				total += e.Size
				wall := "?"
				if stats, err := st.ReadStats(e.Path); err == nil {
					wall = stats.Wall().Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Prefix, e.Label, humanize.Bytes(uint64(e.Size)),
					humanize.RelTime(e.ModTime, time.Now(), "ago", "from now"), wall)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s in %s\n",
				humanize.Comma(int64(len(entries)))+" entries", humanize.Bytes(uint64(total)))
			return nil
		},
	}
}

// filterEntries keeps entries whose label fuzzy-matches pattern, best
// matches first.
func filterEntries(entries []cache.EntryInfo, pattern string) []cache.EntryInfo {
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}
	matches := fuzzy.Find(pattern, labels)
	out := make([]cache.EntryInfo, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}
