package session

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geodash/pkg/telemetry"
)

func TestRoutes(t *testing.T) {
	r := newTestRegistry(t, &fakeFactory{})
	require.NoError(t, r.CreateSession(connCtx(t, "conn-1", "alice"), "mod"))

	srv := httptest.NewServer(Routes(r))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	var ov Overview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ov))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ov.Total)
	require.Len(t, ov.Sessions, 1)
	assert.Equal(t, "alice", ov.Sessions[0].Username)

	resp, err = http.Get(srv.URL + "/sessions/conn-1")
	require.NoError(t, err)
	var info Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "conn-1", info.Identity)
	assert.True(t, info.Ready)

	resp, err = http.Get(srv.URL + "/sessions/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/conn-1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, r.ListSessions())

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "geodash_session_events_total")
}

func TestRoutes_EventStream(t *testing.T) {
	hub := telemetry.NewHub()
	defer hub.Close()
	r := newTestRegistry(t, &fakeFactory{}, WithHub(hub))

	srv := httptest.NewServer(Routes(r))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events?session=conn-1", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.CreateSession(connCtx(t, "conn-1", "alice"), "mod"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev telemetry.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, telemetry.EventSessionCreated, ev.Type)
	assert.Equal(t, "conn-1", ev.SessionID)
}
