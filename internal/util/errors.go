package util

import "errors"

var (
	ErrSourceUnavailable = errors.New("paper source unavailable")
	ErrMalformedResponse = errors.New("malformed feed response")

	ErrEmbeddingService  = errors.New("embedding service error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrChatService       = errors.New("chat service error")
)
