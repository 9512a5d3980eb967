package config

import "github.com/maxbolgarin/errm"

var (
	ErrMissingAgentAPIKey = errm.New("at least one agent API key is required")
)
