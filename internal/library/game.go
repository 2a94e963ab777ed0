package library

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Game is one entry of the host library snapshot.
type Game struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	PluginID  uuid.UUID `json:"pluginId"`
	Installed bool      `json:"isInstalled"`
	Hidden    bool      `json:"hidden"`
}

// Group is the set of visible games contributed by one library plugin.
type Group struct {
	Library Library
	Games   []Game
}

// GameIDs returns the group's game identifiers as strings.
func (g Group) GameIDs() []string {
	ids := make([]string, 0, len(g.Games))
	for _, game := range g.Games {
		ids = append(ids, game.ID.String())
	}
	return ids
}

// GroupGames buckets non-hidden games by plugin. Groups are ordered by
// library name, then key; games within a group by name, then ID.
func GroupGames(games []Game) []Group {
	byPlugin := make(map[uuid.UUID]*Group)
	for _, game := range games {
		if game.Hidden {
			continue
		}
		group, ok := byPlugin[game.PluginID]
		if !ok {
			group = &Group{Library: Lookup(game.PluginID)}
			byPlugin[game.PluginID] = group
		}
		group.Games = append(group.Games, game)
	}

	groups := make([]Group, 0, len(byPlugin))
	for _, group := range byPlugin {
		sort.Slice(group.Games, func(i, j int) bool {
			a, b := group.Games[i], group.Games[j]
			if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
				return na < nb
			}
			return a.ID.String() < b.ID.String()
		})
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Library.Name != groups[j].Library.Name {
			return groups[i].Library.Name < groups[j].Library.Name
		}
		return groups[i].Library.Key() < groups[j].Library.Key()
	})
	return groups
}
