package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marshalljacobs12/upredis/internal/leaderboard"
	"go.uber.org/zap"
)

const defaultTopN = 10

// LeaderboardHandler exposes ranked boards over HTTP.
type LeaderboardHandler struct {
	boards *leaderboard.Leaderboard
	logger *zap.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(boards *leaderboard.Leaderboard, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{boards: boards, logger: logger}
}

// SubmitScore records a member's score and returns their current rank.
func (h *LeaderboardHandler) SubmitScore(ctx context.Context, req *SubmitScoreRequest) (*SubmitScoreResponse, error) {
	if req.Body.Member == "" {
		return nil, huma.Error400BadRequest("member is required")
	}

	if err := h.boards.Add(ctx, req.Board, req.Body.Member, req.Body.Score); err != nil {
		h.logger.Error("score submit failed", zap.String("board", req.Board), zap.Error(err))

		return nil, huma.Error500InternalServerError("score submit failed")
	}

	rank, _, err := h.boards.Rank(ctx, req.Board, req.Body.Member)
	if err != nil {
		h.logger.Error("rank lookup failed", zap.String("board", req.Board), zap.Error(err))

		return nil, huma.Error500InternalServerError("rank lookup failed")
	}

	resp := &SubmitScoreResponse{}
	resp.Body.Member = req.Body.Member
	resp.Body.Score = req.Body.Score
	resp.Body.Rank = rank

	return resp, nil
}

// Top lists a board's best entries.
func (h *LeaderboardHandler) Top(ctx context.Context, req *TopRequest) (*TopResponse, error) {
	n := req.N
	if n <= 0 {
		n = defaultTopN
	}

	entries, err := h.boards.Top(ctx, req.Board, n)
	if err != nil {
		h.logger.Error("top lookup failed", zap.String("board", req.Board), zap.Error(err))

		return nil, huma.Error500InternalServerError("top lookup failed")
	}

	resp := &TopResponse{}
	resp.Body.Board = req.Board
	resp.Body.Entries = entries

	return resp, nil
}
