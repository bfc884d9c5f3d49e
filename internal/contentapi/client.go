// Package contentapi is an HTTP client for the external content API (spec
// §1: "the content API and its underlying data store are external
// systems" and §6 external interfaces): a Strapi-like REST surface
// exposing active-passengers, routes, depots, route-depots and
// spawn-configs collections, with filters[field][$op]=value filtering,
// pagination[page]/pagination[pageSize] pagination, and populate=*
// relation hydration.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/model"
)

// Client talks to the content API over HTTP.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// New builds a Client. timeout <= 0 uses a 10s default.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

// envelope matches the Strapi-style {"data": ..., "meta": {"pagination": ...}} response shape.
type envelope[T any] struct {
	Data T        `json:"data"`
	Meta metaInfo `json:"meta"`
}

type metaInfo struct {
	Pagination struct {
		Page      int `json:"page"`
		PageSize  int `json:"pageSize"`
		PageCount int `json:"pageCount"`
		Total     int `json:"total"`
	} `json:"pagination"`
}

// ListOptions carries the pagination, filter, and relation-hydration
// parameters common to every content-API collection endpoint.
type ListOptions struct {
	Page      int
	PageSize  int
	Populate  bool
	Filters   map[string]map[string]string // field -> operator($eq,$gte,$lte) -> value
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("pagination[page]", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("pagination[pageSize]", strconv.Itoa(o.PageSize))
	}
	if o.Populate {
		q.Set("populate", "*")
	}
	for field, ops := range o.Filters {
		for op, val := range ops {
			q.Set(fmt.Sprintf("filters[%s][%s]", field, op), val)
		}
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if q != nil && len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperror.Wrap(apperror.KindInternal, "encode_request", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return apperror.Wrap(apperror.KindPersistence, "content_api_unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperror.New(apperror.KindPersistence, "content_api_error",
			fmt.Sprintf("content api %s %s: status %d", method, path, resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Wrap(apperror.KindInternal, "decode_response", err)
	}
	return nil
}

// ListRoutes fetches the routes collection.
func (c *Client) ListRoutes(ctx context.Context, opts ListOptions) ([]model.Route, error) {
	var env envelope[[]model.Route]
	if err := c.do(ctx, http.MethodGet, "/api/routes", opts.query(), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ListDepots fetches the depots collection.
func (c *Client) ListDepots(ctx context.Context, opts ListOptions) ([]model.Depot, error) {
	var env envelope[[]model.Depot]
	if err := c.do(ctx, http.MethodGet, "/api/depots", opts.query(), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ListRouteDepots fetches the route-depot junction collection.
func (c *Client) ListRouteDepots(ctx context.Context, opts ListOptions) ([]RouteDepotLink, error) {
	var env envelope[[]RouteDepotLink]
	if err := c.do(ctx, http.MethodGet, "/api/route-depots", opts.query(), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// RouteDepotLink associates a route with a depot it serves.
type RouteDepotLink struct {
	RouteID string `json:"route_id"`
	DepotID string `json:"depot_id"`
}

// SpawnConfig fetches the spawn-config snapshot for key, used as the
// spawnconfig.Fetcher plugged into package spawnconfig.
func (c *Client) SpawnConfig(ctx context.Context, key string) (model.SpawnConfig, error) {
	var env envelope[model.SpawnConfig]
	opts := ListOptions{Filters: map[string]map[string]string{"key": {"$eq": key}}}
	if err := c.do(ctx, http.MethodGet, "/api/spawn-configs", opts.query(), nil, &env); err != nil {
		return model.SpawnConfig{}, err
	}
	return env.Data, nil
}

// ListActivePassengers fetches WAITING passengers, optionally scoped to a
// route or depot.
func (c *Client) ListActivePassengers(ctx context.Context, opts ListOptions) ([]model.Passenger, error) {
	if opts.Filters == nil {
		opts.Filters = map[string]map[string]string{}
	}
	opts.Filters["status"] = map[string]string{"$eq": string(model.StatusWaiting)}
	var env envelope[[]model.Passenger]
	if err := c.do(ctx, http.MethodGet, "/api/active-passengers", opts.query(), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ListPassengers fetches passengers under arbitrary caller-supplied
// filters, with no forced status predicate (unlike ListActivePassengers).
// The manifest service uses this to query across statuses and date ranges.
func (c *Client) ListPassengers(ctx context.Context, opts ListOptions) ([]model.Passenger, error) {
	var env envelope[[]model.Passenger]
	if err := c.do(ctx, http.MethodGet, "/api/active-passengers", opts.query(), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreatePassenger persists a single passenger record.
func (c *Client) CreatePassenger(ctx context.Context, p model.Passenger) error {
	return c.do(ctx, http.MethodPost, "/api/active-passengers", nil, map[string]any{"data": p}, nil)
}

// UpdatePassengerStatus transitions a passenger to a new status.
func (c *Client) UpdatePassengerStatus(ctx context.Context, passengerID string, status model.Status) error {
	path := "/api/active-passengers/" + url.PathEscape(passengerID)
	return c.do(ctx, http.MethodPut, path, nil, map[string]any{"data": map[string]any{"status": status}}, nil)
}

// DeletePassenger removes a passenger record (janitor pruning, spec §5).
func (c *Client) DeletePassenger(ctx context.Context, passengerID string) error {
	path := "/api/active-passengers/" + url.PathEscape(passengerID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
