package library

import (
	"sort"

	"github.com/google/uuid"
)

// Library identifies the plugin that contributed a game.
type Library struct {
	ID    uuid.UUID
	Name  string
	Known bool
}

// Key is the stable identifier used for cache entries.
func (l Library) Key() string {
	return l.ID.String()
}

// manualLibraryName labels games the user added by hand; the host records
// them under the nil plugin ID.
const manualLibraryName = "Playnite"

var knownLibraries = map[uuid.UUID]string{
	uuid.MustParse("cb91dfc9-b977-43bf-8e70-55f46e410fab"): "Steam",
	uuid.MustParse("00000002-dbd1-46c6-b5d0-b1ba559d10e4"): "Epic",
	uuid.MustParse("aebe8b7c-6dc3-4a66-af31-e7375c6b5e9e"): "GOG",
	uuid.MustParse("85dd7072-2f20-4e76-a007-41035e390724"): "EA app",
	uuid.MustParse("c2f038e5-8b92-4877-91f1-da9094155fc5"): "Ubisoft Connect",
	uuid.MustParse("e3c26a3d-d695-4cb7-a769-5ff7612c7edd"): "Battle.net",
	uuid.MustParse("00000001-ebb2-4eec-abcb-7c89937a42bb"): "itch.io",
	uuid.MustParse("402674cd-4af6-4886-b6ec-0e695bfa0688"): "Amazon Games",
	uuid.MustParse("7e4fbb5e-2ae3-48d4-8ba0-6b30e7a4e287"): "Xbox",
	uuid.MustParse("96e8c4bc-ec5c-4c8b-87e7-18ee5a690626"): "Humble",
	uuid.MustParse("0e2e793e-e0dd-4447-835c-c44a1fd506ec"): "Bethesda",
	uuid.MustParse("e2a7d494-c138-489d-bb3f-1d786beeb675"): "Twitch",
}

// Lookup resolves a plugin ID to its library. Unknown IDs yield a library
// named after the ID prefix rather than an error.
func Lookup(pluginID uuid.UUID) Library {
	if pluginID == uuid.Nil {
		return Library{ID: pluginID, Name: manualLibraryName, Known: true}
	}
	if name, ok := knownLibraries[pluginID]; ok {
		return Library{ID: pluginID, Name: name, Known: true}
	}
	return Library{ID: pluginID, Name: "Unknown (" + pluginID.String()[:8] + ")"}
}

// KnownLibraries lists the built-in identity table ordered by name.
func KnownLibraries() []Library {
	out := make([]Library, 0, len(knownLibraries)+1)
	out = append(out, Lookup(uuid.Nil))
	for id := range knownLibraries {
		out = append(out, Lookup(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
