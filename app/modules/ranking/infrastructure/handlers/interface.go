package rankinghandlers

import "net/http"

// Handlers serves the leaderboard HTTP API.
type Handlers interface {
	HandleListPlayers(w http.ResponseWriter, r *http.Request)
	HandleTierLookup(w http.ResponseWriter, r *http.Request)
	HandleLadder(w http.ResponseWriter, r *http.Request)
	HandleTierDistribution(w http.ResponseWriter, r *http.Request)
	HandleTierChart(w http.ResponseWriter, r *http.Request)
	HandleExportPlayers(w http.ResponseWriter, r *http.Request)
}
