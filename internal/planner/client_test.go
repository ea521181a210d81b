package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/bi-assistant/internal/domain"
)

func TestClient_Plan(t *testing.T) {
	var got domain.PlanRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/plan", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(domain.PlanResponse{
			Result: domain.QueryResult{
				Answer:  "2 items are low on stock",
				SQL:     "SELECT sku FROM stock WHERE qty < 10",
				Intent:  "inventory_status",
				Columns: []string{"sku"},
				Rows:    [][]any{{"A-1"}, {"B-2"}},
			},
			Entities: []domain.EntityReference{{Type: "warehouse", ID: "WH-01"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	resp, err := client.Plan(context.Background(), domain.PlanRequest{
		Question:   "What items are low on stock?",
		Persona:    domain.PersonaWarehouseManager,
		Params:     map[string]string{"warehouse": "WH-01"},
		Transcript: "User: hi\nAssistant: hello\n",
	})
	require.NoError(t, err)

	assert.Equal(t, "What items are low on stock?", got.Question)
	assert.Equal(t, domain.PersonaWarehouseManager, got.Persona)
	assert.Equal(t, "WH-01", got.Params["warehouse"])
	assert.Contains(t, got.Transcript, "User: hi")

	assert.Equal(t, "2 items are low on stock", resp.Result.Answer)
	assert.Equal(t, 2, resp.Result.RowCount)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "WH-01", resp.Entities[0].ID)
}

func TestClient_PlanErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"warehouse unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Plan(context.Background(), domain.PlanRequest{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "warehouse unavailable")
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("", 0)
	assert.False(t, client.IsConfigured())

	_, err := client.Plan(context.Background(), domain.PlanRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, time.Second).Plan(ctx, domain.PlanRequest{Question: "q"})
	assert.Error(t, err)
}
