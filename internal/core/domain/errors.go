package domain

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrStreamNotFound = errors.New("stream not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNoStream       = errors.New("no stream joined")
	ErrEmptyPayload   = errors.New("empty payload")
	ErrNodeNotFound   = errors.New("node not found")
)
