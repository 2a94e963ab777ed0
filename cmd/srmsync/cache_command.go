package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"srmsync/internal/synccache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset library fingerprints",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached library fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cacheStore(ctx)
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Key,
					strconv.Itoa(entry.Games),
					entry.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprint(out, renderTable([]string{"Library", "Games", "Synced"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [library-key...]",
		Short: "Forget fingerprints so the next sync re-syncs those libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cacheStore(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if err := store.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Cleared all library fingerprints")
				return nil
			}
			for _, key := range args {
				if err := store.Delete(strings.TrimSpace(key)); err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %s\n", key)
			}
			return nil
		},
	}

	cacheCmd.AddCommand(listCmd, clearCmd)
	return cacheCmd
}

func cacheStore(ctx *commandContext) (*synccache.Store, error) {
	logger, err := ctx.logger()
	if err != nil {
		return nil, err
	}
	return synccache.NewStore(ctx.configValue().Paths.CacheDir, logger), nil
}
