// Package llm wraps the language model behind a small capability interface.
// The model is an unreliable external dependency: calls may error, time out,
// or return malformed text, and callers must treat every call as fallible I/O.
package llm

import "context"

type Request struct {
	System string
	User   string
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
