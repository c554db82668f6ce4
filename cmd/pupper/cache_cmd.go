package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(flags *projectFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the compile cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show the cached modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}
			defer p.Close()
			if p.cache == nil {
				return fmt.Errorf("the compile cache is disabled")
			}

			out := cmd.OutOrStdout()
			for _, e := range p.cache.Entries() {
				fmt.Fprintf(out, "%s  %6d B  %3d hits  %s\n", e.Key[:12], e.Size, e.Hits, e.Source)
			}
			stats := p.cache.Stats()
			fmt.Fprintf(out, "%d entries, %d bytes\n", stats.Entries, stats.TotalSize)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached module",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}
			defer p.Close()
			if p.cache == nil {
				return fmt.Errorf("the compile cache is disabled")
			}
			if err := p.cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Cache cleared")
			return nil
		},
	})

	return cmd
}
