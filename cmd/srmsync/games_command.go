package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"srmsync/internal/api"
	"srmsync/internal/changes"
	"srmsync/internal/config"
	"srmsync/internal/daemonctl"
	"srmsync/internal/ipc"
	"srmsync/internal/library"
	"srmsync/internal/lifecycle"
	"srmsync/internal/synccache"
)

func newGamesCommand(ctx *commandContext) *cobra.Command {
	var query string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "games",
		Short: "List library games and their lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			games, err := listGames(cmd.Context(), ctx, query)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.GameListResponse{Games: games})
			}
			out := cmd.OutOrStdout()
			if len(games) == 0 {
				fmt.Fprintln(out, "No games found")
				return nil
			}
			rows := make([][]string, 0, len(games))
			for _, g := range games {
				rows = append(rows, []string{g.Name, g.Library, yesNo(g.Installed), g.State, g.ID})
			}
			fmt.Fprint(out, renderTable([]string{"Name", "Library", "Installed", "State", "ID"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "Fuzzy-match game titles")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func listGames(ctx context.Context, cmdCtx *commandContext, query string) ([]api.Game, error) {
	var games []api.Game
	err := cmdCtx.withClient(func(client *ipc.Client) error {
		resp, err := client.Games(query)
		if err != nil {
			return err
		}
		games = resp.Games
		return nil
	})
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		return games, err
	}
	return offlineGames(ctx, cmdCtx.configValue(), query)
}

// offlineGames reads the snapshot and marker directory directly.
func offlineGames(ctx context.Context, cfg *config.Config, query string) ([]api.Game, error) {
	all, err := library.NewFileSource(cfg.Host.LibraryPath).Games(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) != "" {
		all = library.Search(all, query)
	} else {
		sort.SliceStable(all, func(i, j int) bool {
			return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
		})
	}
	states, err := lifecycle.NewDirStore(cfg.Paths.TrackingDir).List()
	if err != nil {
		return nil, err
	}
	return api.FromGames(all, states), nil
}

func newLibrariesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "libraries",
		Short: "Show library groups and whether they need a sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			games, err := library.NewFileSource(cfg.Host.LibraryPath).Games(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			detector := changes.NewDetector(synccache.NewStore(cfg.Paths.CacheDir, logger), logger)
			all, err := detector.ComputeChanges(library.GroupGames(games))
			if err != nil {
				return err
			}

			libs := make([]api.Library, 0, len(all))
			for _, change := range all {
				libs = append(libs, api.Library{
					Key:     change.Group.Library.Key(),
					Name:    change.Group.Library.Name,
					Games:   len(change.Group.Games),
					Changed: change.Changed,
				})
			}
			if jsonOutput {
				return writeJSON(cmd, libs)
			}
			out := cmd.OutOrStdout()
			if len(libs) == 0 {
				fmt.Fprintln(out, "No visible games in the library snapshot")
				return nil
			}
			rows := make([][]string, 0, len(libs))
			for _, lib := range libs {
				rows = append(rows, []string{lib.Name, lib.Key, fmt.Sprintf("%d", lib.Games), yesNo(lib.Changed)})
			}
			fmt.Fprint(out, renderTable([]string{"Library", "Key", "Games", "Needs Sync"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
