package domain

import (
	"context"
)

// ChatRequest represents one conversational turn
type ChatRequest struct {
	SessionID string            `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Question  string            `json:"question" validate:"required,max=2000"`
	Persona   string            `json:"persona" validate:"required"`
	Params    map[string]string `json:"params,omitempty"`
}

// ChatResponse represents the answer to a conversational turn
type ChatResponse struct {
	RequestID string       `json:"request_id"`
	SessionID string       `json:"session_id"`
	Question  string       `json:"question"`
	Persona   Persona      `json:"persona"`
	Cached    bool         `json:"cached"`
	Result    *QueryResult `json:"result"`
}

// QueryResult is the payload cached per question/persona/params
type QueryResult struct {
	Answer    string   `json:"answer"`
	SQL       string   `json:"sql,omitempty"`
	Intent    string   `json:"intent,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// EntityReference is something the planner noticed the user talking about,
// e.g. {Type: "warehouse", ID: "WH-01"}.
type EntityReference struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Value any    `json:"value,omitempty"`
}

// PlanRequest is what the external query planner receives on a cache miss
type PlanRequest struct {
	Question   string            `json:"question"`
	Persona    Persona           `json:"persona"`
	Params     map[string]string `json:"params,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
}

// PlanResponse is what the external query planner returns
type PlanResponse struct {
	Result   QueryResult       `json:"result"`
	Entities []EntityReference `json:"entities,omitempty"`
}

// QueryPlanner turns a natural-language question into a result. It lives
// outside this service (NL-to-SQL generation plus warehouse execution).
type QueryPlanner interface {
	Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error)
}
