package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the cache and leaderboard routes.
func RegisterRoutes(api huma.API, cacheHandler *CacheHandler, boardHandler *LeaderboardHandler) {
	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/cache/{key}",
		Summary: "Read a cached value",
		Tags:    []string{"Cache"},
	}, cacheHandler.GetValue)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPut,
		Path:        "/cache/{key}",
		Summary:     "Write a cached value",
		Description: "Stores a JSON value under the key, with an optional per-call TTL.",
		Tags:        []string{"Cache"},
	}, cacheHandler.PutValue)

	huma.Register(api, huma.Operation{
		Method:        http.MethodDelete,
		Path:          "/cache/{key}",
		Summary:       "Delete a cached value",
		Tags:          []string{"Cache"},
		DefaultStatus: http.StatusNoContent,
	}, cacheHandler.DeleteValue)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/boards/{board}/scores",
		Summary: "Submit a score",
		Tags:    []string{"Leaderboard"},
	}, boardHandler.SubmitScore)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/boards/{board}/top",
		Summary: "List the top entries of a board",
		Tags:    []string{"Leaderboard"},
	}, boardHandler.Top)
}
