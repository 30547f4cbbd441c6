package handlers

import (
	"encoding/json"

	"github.com/marshalljacobs12/upredis/internal/leaderboard"
)

// GetValueRequest is the request for reading a cached value.
type GetValueRequest struct {
	Key string `doc:"Cache key" example:"user:42" path:"key"`
}

// GetValueResponse is the response for a cache read.
type GetValueResponse struct {
	Body struct {
		Key   string          `doc:"Cache key"             json:"key"`
		Value json.RawMessage `doc:"Cached value as JSON" json:"value"`
	}
}

// PutValueRequest is the request for writing a cached value.
type PutValueRequest struct {
	Key  string `doc:"Cache key" example:"user:42" path:"key"`
	Body struct {
		Value      json.RawMessage `doc:"Value to cache as JSON"                      json:"value"`
		TTLSeconds int64           `doc:"Expiry in seconds; 0 uses the default" json:"ttlSeconds,omitempty"`
	}
}

// PutValueResponse is the response for a cache write.
type PutValueResponse struct {
	Body struct {
		Key string `json:"key"`
	}
}

// DeleteValueRequest is the request for deleting a cached value.
type DeleteValueRequest struct {
	Key string `doc:"Cache key" example:"user:42" path:"key"`
}

// SubmitScoreRequest is the request for submitting a leaderboard score.
type SubmitScoreRequest struct {
	Board string `doc:"Board name" example:"season1" path:"board"`
	Body  struct {
		Member string  `doc:"Member identifier" example:"player-7" json:"member"`
		Score  float64 `doc:"Score to record"   example:"1250"     json:"score"`
	}
}

// SubmitScoreResponse is the response for a submitted score.
type SubmitScoreResponse struct {
	Body struct {
		Member string  `json:"member"`
		Score  float64 `json:"score"`
		Rank   int64   `json:"rank"`
	}
}

// TopRequest is the request for the top of a board.
type TopRequest struct {
	Board string `doc:"Board name"        example:"season1" path:"board"`
	N     int64  `doc:"Number of entries" example:"10"      query:"n"`
}

// TopResponse is the response listing a board's best entries.
type TopResponse struct {
	Body struct {
		Board   string              `json:"board"`
		Entries []leaderboard.Entry `json:"entries"`
	}
}
