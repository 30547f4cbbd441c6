package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marshalljacobs12/upredis/internal/cache"
	"go.uber.org/zap"
)

// CacheHandler exposes the shared cache over HTTP.
type CacheHandler struct {
	cache  *cache.Cache
	logger *zap.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(c *cache.Cache, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: c, logger: logger}
}

// GetValue reads a cached value by key.
func (h *CacheHandler) GetValue(ctx context.Context, req *GetValueRequest) (*GetValueResponse, error) {
	var value json.RawMessage

	found, err := h.cache.Get(ctx, req.Key, &value)
	if err != nil {
		h.logger.Error("cache read failed", zap.String("key", req.Key), zap.Error(err))

		return nil, huma.Error500InternalServerError("cache read failed")
	}

	if !found {
		return nil, huma.Error404NotFound("key not found")
	}

	resp := &GetValueResponse{}
	resp.Body.Key = req.Key
	resp.Body.Value = value

	return resp, nil
}

// PutValue writes a value to the cache, with an optional per-call TTL.
func (h *CacheHandler) PutValue(ctx context.Context, req *PutValueRequest) (*PutValueResponse, error) {
	ttl := time.Duration(req.Body.TTLSeconds) * time.Second

	if err := h.cache.Set(ctx, req.Key, req.Body.Value, ttl); err != nil {
		h.logger.Error("cache write failed", zap.String("key", req.Key), zap.Error(err))

		return nil, huma.Error500InternalServerError("cache write failed")
	}

	resp := &PutValueResponse{}
	resp.Body.Key = req.Key

	return resp, nil
}

// DeleteValue removes a cached value.
func (h *CacheHandler) DeleteValue(ctx context.Context, req *DeleteValueRequest) (*struct{}, error) {
	if err := h.cache.Delete(ctx, req.Key); err != nil {
		h.logger.Error("cache delete failed", zap.String("key", req.Key), zap.Error(err))

		return nil, huma.Error500InternalServerError("cache delete failed")
	}

	return &struct{}{}, nil
}
