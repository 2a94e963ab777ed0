package library

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Search returns games whose names fuzzily match query, best match first.
// An empty query returns every game in its original order.
func Search(games []Game, query string) []Game {
	if query == "" {
		return append([]Game(nil), games...)
	}
	names := make([]string, len(games))
	for i, game := range games {
		names[i] = game.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Stable(ranks)

	out := make([]Game, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, games[rank.OriginalIndex])
	}
	return out
}
