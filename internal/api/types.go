package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Step is one timed step of a sync session.
type Step struct {
	Name       string `json:"name"`
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"durationMs"`
	Detail     string `json:"detail,omitempty"`
}

// Library is one library group examined by a session.
type Library struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Games   int    `json:"games"`
	Changed bool   `json:"changed"`
}

// Session describes a finished sync session.
type Session struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Failure    string    `json:"failure,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  string    `json:"startedAt,omitempty"`
	FinishedAt string    `json:"finishedAt,omitempty"`
	DurationMS int64     `json:"durationMs"`
	Libraries  []Library `json:"libraries,omitempty"`
	Steps      []Step    `json:"steps,omitempty"`
}

// Game is a library game with its lifecycle state.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Library   string `json:"library"`
	Installed bool   `json:"installed"`
	State     string `json:"state"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	StartedAt      string             `json:"startedAt,omitempty"`
	SyncInProgress bool               `json:"syncInProgress"`
	SyncQueued     bool               `json:"syncQueued"`
	LastSession    *Session           `json:"lastSession,omitempty"`
	TrackedGames   map[string]string  `json:"trackedGames,omitempty"`
	LockFilePath   string             `json:"lockFilePath"`
	HistoryPath    string             `json:"historyPath"`
	LibraryPath    string             `json:"libraryPath"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// SessionListResponse wraps history sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// GameListResponse wraps library games.
type GameListResponse struct {
	Games []Game `json:"games"`
}
