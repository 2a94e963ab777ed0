package ipc

import "srmsync/internal/api"

// ServiceName is the JSON-RPC service the daemon registers.
const ServiceName = "SRMSync"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon status.
type StatusResponse = api.DaemonStatus

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// SyncRequest asks for a sync session. With Wait the call blocks until the
// session ends; otherwise the session is queued behind any running one.
type SyncRequest struct {
	Trigger string `json:"trigger"`
	Wait    bool   `json:"wait"`
}

// SyncResponse reports the queued state or the finished session.
type SyncResponse struct {
	Queued  bool         `json:"queued"`
	Session *api.Session `json:"session,omitempty"`
}

// OpenURIRequest carries a launch URI, or a bare game ID.
type OpenURIRequest struct {
	URI    string `json:"uri,omitempty"`
	GameID string `json:"gameId,omitempty"`
}

// OpenURIResponse acknowledges a launch request.
type OpenURIResponse struct {
	Accepted bool `json:"accepted"`
}

// GameEventRequest forwards a host event about a game.
type GameEventRequest struct {
	Event  string `json:"event"`
	GameID string `json:"gameId"`
}

// GameEventResponse acknowledges a game event.
type GameEventResponse struct {
	Accepted bool `json:"accepted"`
}

// GamesRequest lists library games, optionally filtered by a fuzzy query.
type GamesRequest struct {
	Query string `json:"query,omitempty"`
}

// GamesResponse contains library games.
type GamesResponse struct {
	Games []api.Game `json:"games"`
}

// HistoryRequest lists recent sessions.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains recent sessions, newest first.
type HistoryResponse struct {
	Sessions []api.Session `json:"sessions"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
