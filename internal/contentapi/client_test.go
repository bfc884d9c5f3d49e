package contentapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/model"
)

func TestListRoutes_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/routes", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(envelope[[]model.Route]{
			Data: []model.Route{{ID: "R1", ShortName: "kimara"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", 0)
	routes, err := c.ListRoutes(context.Background(), ListOptions{Page: 1, PageSize: 50, Populate: true})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "R1", routes[0].ID)
}

func TestDo_NonOKStatusMapsToPersistenceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.ListRoutes(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPersistence))
}

func TestCreatePassenger_SendsDataEnvelope(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	err := c.CreatePassenger(context.Background(), model.Passenger{PassengerID: "p1"})
	require.NoError(t, err)
	data, ok := received["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p1", data["passenger_id"])
}

func TestListActivePassengers_FiltersByWaitingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WAITING", r.URL.Query().Get("filters[status][$eq]"))
		_ = json.NewEncoder(w).Encode(envelope[[]model.Passenger]{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.ListActivePassengers(context.Background(), ListOptions{})
	require.NoError(t, err)
}

func TestListPassengers_DoesNotForceStatusFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("filters[status][$eq]"))
		_ = json.NewEncoder(w).Encode(envelope[[]model.Passenger]{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.ListPassengers(context.Background(), ListOptions{Filters: map[string]map[string]string{
		"spawn_time": {"$gte": "2026-01-01T00:00:00Z"},
	}})
	require.NoError(t, err)
}
