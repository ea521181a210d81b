package domain

import (
	"maps"
	"time"
)

// Interaction is one recorded question/answer exchange within a session
type Interaction struct {
	Query     string         `json:"query"`
	Response  string         `json:"response"`
	Timestamp time.Time      `json:"timestamp"`
	Intent    string         `json:"intent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewInteraction builds an Interaction that owns a private copy of metadata
func NewInteraction(query, response, intent string, metadata map[string]any, at time.Time) Interaction {
	return Interaction{
		Query:     query,
		Response:  response,
		Timestamp: at,
		Intent:    intent,
		Metadata:  maps.Clone(metadata),
	}
}

// Clone returns a copy that shares no mutable state with i
func (i Interaction) Clone() Interaction {
	i.Metadata = maps.Clone(i.Metadata)
	return i
}
