package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"buspass/internal/models"
	"buspass/internal/notifications"
	"buspass/internal/service"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

// apiClient talks to a running bus-pass server.
type apiClient struct {
	base  string
	http  *resty.Client
	token string
}

func newAPIClient(base string) *apiClient {
	base = strings.TrimRight(base, "/")
	return &apiClient{
		base: base,
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

func (c *apiClient) withToken(token string) *apiClient {
	c.token = token
	if token != "" {
		c.http.SetAuthToken(token)
	}
	return c
}

// apiError turns a non-2xx response into an error carrying the server's code.
func apiError(resp *resty.Response) error {
	var body models.ErrorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		if body.Code != "" {
			return fmt.Errorf("%s (%s, HTTP %d)", body.Error, body.Code, resp.StatusCode())
		}
		return fmt.Errorf("%s (HTTP %d)", body.Error, resp.StatusCode())
	}
	return fmt.Errorf("unexpected response: HTTP %d", resp.StatusCode())
}

func (c *apiClient) status(ctx context.Context, applicationNo string) (*service.StatusView, error) {
	var view service.StatusView
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("no", strings.ToUpper(applicationNo)).
		SetResult(&view).
		Get("/api/applications/{no}/status")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &view, nil
}

func (c *apiClient) login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	if out.Token == "" {
		return "", fmt.Errorf("login returned no token")
	}
	c.withToken(out.Token)
	return out.Token, nil
}

func (c *apiClient) ticket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/api/admin/ws/ticket")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	return out.Ticket, nil
}

// feedURL maps the HTTP base onto the review feed websocket endpoint.
func (c *apiClient) feedURL(ticket string) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/admin/ws/reviews"
	u.RawQuery = url.Values{"ticket": {ticket}}.Encode()
	return u.String(), nil
}

// follow streams review events to fn until ctx is done or the server closes
// the connection. A fresh ticket is requested for the dial.
func (c *apiClient) follow(ctx context.Context, fn func(notifications.ReviewEvent)) error {
	ticket, err := c.ticket(ctx)
	if err != nil {
		return fmt.Errorf("ticket: %w", err)
	}
	target, err := c.feedURL(ticket)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return fmt.Errorf("dial review feed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var ev notifications.ReviewEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			continue
		}
		fn(ev)
	}
}
