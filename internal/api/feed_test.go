package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hackrange/ctf-engine/internal/models"
)

func dialFeed(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/feed"
	header := http.Header{"Authorization": []string{"Bearer " + testApiKey}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("failed to dial feed: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func waitForClients(t *testing.T, hub *FeedHub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d clients, has %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSolveFeedStreamsEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialFeed(t, ts)
	defer conn.Close()

	waitForClients(t, srv.feed, 1)

	sent := models.SolveEvent{
		UserID:      "user-1",
		ChallengeID: "basic-recon",
		Points:      50,
		SolvedAt:    time.Now().UTC().Truncate(time.Second),
	}
	srv.feed.Broadcast(context.Background(), sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got models.SolveEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("failed to read solve event: %v", err)
	}

	if got.UserID != sent.UserID || got.ChallengeID != sent.ChallengeID || got.Points != sent.Points {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestSolveFeedClientDisconnect(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialFeed(t, ts)
	waitForClients(t, srv.feed, 1)

	conn.Close()
	waitForClients(t, srv.feed, 0)

	// Broadcasting after the disconnect must not block or panic
	srv.feed.Broadcast(context.Background(), models.SolveEvent{UserID: "user-1"})
}

func TestSolveFeedRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/feed"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure without api key")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}
