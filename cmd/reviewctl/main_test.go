package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"buspass/internal/models"
	"buspass/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/applications/APP-1001/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"application_no":"APP-1001","student_name":"Asha Rao","status":"Approved"}`))
	})
	mux.HandleFunc("/api/applications/APP-404/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "application not found", Code: models.CodeNotFound})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials","code":"UNAUTHORIZED"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1"}`))
	})
	mux.HandleFunc("/api/admin/ws/ticket", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ticket":"t-1","expires_in":30}`))
	})
	mux.HandleFunc("/api/admin/ws/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticket") != "t-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("welcome"))
		_ = conn.WriteJSON(notifications.ReviewEvent{
			Type:          notifications.EventApplicationApproved,
			ApplicationNo: "APP-1001",
			Status:        models.StatusApproved,
			OccurredAt:    time.Now(),
		})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus(t *testing.T) {
	srv := fakeAPI(t)
	client := newAPIClient(srv.URL)

	view, err := client.status(context.Background(), "app-1001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, view.Status)
	assert.Equal(t, "Asha Rao", view.StudentName)

	_, err = client.status(context.Background(), "APP-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.CodeNotFound)
}

func TestLoginAndFollow(t *testing.T) {
	srv := fakeAPI(t)
	client := newAPIClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.login(ctx, "principal", "wrong")
	require.Error(t, err)

	token, err := client.login(ctx, "principal", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	var events []notifications.ReviewEvent
	require.NoError(t, client.follow(ctx, func(ev notifications.ReviewEvent) {
		events = append(events, ev)
	}))
	require.Len(t, events, 1)
	assert.Equal(t, notifications.EventApplicationApproved, events[0].Type)
	assert.Equal(t, "APP-1001", events[0].ApplicationNo)
}

func TestFollowWithoutTokenFails(t *testing.T) {
	srv := fakeAPI(t)
	err := newAPIClient(srv.URL).follow(context.Background(), func(notifications.ReviewEvent) {})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "ticket:"))
}

func TestFeedURL(t *testing.T) {
	u, err := newAPIClient("https://api.example.com/").feedURL("abc")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/api/admin/ws/reviews?ticket=abc", u)
}
