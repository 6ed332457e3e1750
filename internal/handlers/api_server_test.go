// internal/handlers/api_server_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/auth"
	"github.com/primepickle/courtside/internal/hub"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	handler http.Handler
	store   *lobby.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	require.NoError(t, auth.Init()) // ephemeral keys, no DB needed

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := hub.New(logger)
	store := lobby.NewMemoryStore()
	svc := lobby.NewService(store, lobby.Options{
		Countdown: 10 * time.Millisecond,
		Notifier:  h,
		Logger:    logger,
	})
	t.Cleanup(svc.Close)

	srv := &APIServer{Service: svc, Hub: h, Logger: logger}
	return &testAPI{handler: srv.Routes(), store: store}
}

func tokenFor(t *testing.T, role models.Role) (models.Identity, string) {
	t.Helper()
	id := models.Identity{ID: uuid.New(), Role: role}
	token, err := auth.CreateJWT(id)
	require.NoError(t, err)
	return id, token
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

type createResponse struct {
	ID     uuid.UUID          `json:"id"`
	Token  string             `json:"token"`
	Status models.LobbyStatus `json:"status"`
}

func (a *testAPI) createLobby(t *testing.T, orgToken string) createResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/lobbies", orgToken, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out createResponse
	decode(t, w, &out)
	return out
}

func TestLobbyLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	_, orgToken := tokenFor(t, models.RoleOrganizer)

	created := api.createLobby(t, orgToken)
	assert.Equal(t, models.StatusOpen, created.Status)
	assert.NotEmpty(t, created.Token)

	var tokens []string
	for i := 0; i < 4; i++ {
		_, tok := tokenFor(t, models.RolePlayer)
		tokens = append(tokens, tok)
		w := api.do(t, http.MethodPost, "/lobbies/join", tok, `{"token":"`+created.Token+`"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var joined struct {
			LobbyID uuid.UUID `json:"lobby_id"`
		}
		decode(t, w, &joined)
		assert.Equal(t, created.ID, joined.LobbyID)
	}

	lobbyPath := "/lobbies/" + created.ID.String()

	w := api.do(t, http.MethodGet, lobbyPath, tokens[0], "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail models.LobbyDetail
	decode(t, w, &detail)
	assert.Equal(t, models.StatusFull, detail.Lobby.Status)
	assert.Empty(t, detail.Lobby.Token)
	require.Len(t, detail.Players, 4)
	assert.Equal(t, models.TeamB, detail.Players[3].Team)

	w = api.do(t, http.MethodPost, lobbyPath+"/captain", tokens[0], `{"team":"A"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(t, http.MethodPost, lobbyPath+"/settings", tokens[0], `{"point_goal":15}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &detail)
	assert.Equal(t, 15, detail.Lobby.PointGoal)

	for _, tok := range tokens {
		w = api.do(t, http.MethodPost, lobbyPath+"/ready", tok, `{"ready":true}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	require.Eventually(t, func() bool {
		l, err := api.store.GetLobby(context.Background(), created.ID)
		return err == nil && l.Status == models.StatusPlaying
	}, 2*time.Second, 5*time.Millisecond)

	body := `{"lobby_id":"` + created.ID.String() + `","winner_team":"B","score":"11-6"}`
	w = api.do(t, http.MethodPost, "/matches/complete", orgToken, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done struct {
		Message string       `json:"message"`
		Match   models.Match `json:"match"`
	}
	decode(t, w, &done)
	assert.Equal(t, "match completed and ratings updated", done.Message)
	assert.Equal(t, models.TeamB, done.Match.WinningTeam)
	assert.Equal(t, 20, done.Match.RatingDelta)

	w = api.do(t, http.MethodPost, "/matches/complete", orgToken, body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, lobbyPath+"/match", tokens[0], "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored models.Match
	decode(t, w, &stored)
	assert.Equal(t, done.Match.ID, stored.ID)
	assert.Equal(t, "11-6", stored.Score)

	w = api.do(t, http.MethodGet, "/me", tokens[3], "")
	require.Equal(t, http.StatusOK, w.Code)
	var me models.Profile
	decode(t, w, &me)
	assert.Equal(t, 1020, me.Rating)
	assert.Equal(t, 1, me.GamesPlayed)

	w = api.do(t, http.MethodGet, "/lobbies", orgToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Lobbies []models.LobbyView `json:"lobbies"`
	}
	decode(t, w, &list)
	require.Len(t, list.Lobbies, 1)
	assert.Equal(t, models.StatusCompleted, list.Lobbies[0].Status)
	assert.Equal(t, created.Token, list.Lobbies[0].Token)
	assert.Equal(t, 4, list.Lobbies[0].PlayerCount)
}

func TestErrorStatuses(t *testing.T) {
	api := newTestAPI(t)
	_, orgToken := tokenFor(t, models.RoleOrganizer)
	_, otherOrgToken := tokenFor(t, models.RoleOrganizer)
	_, playerToken := tokenFor(t, models.RolePlayer)
	created := api.createLobby(t, orgToken)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"no token", http.MethodGet, "/lobbies", "", "", http.StatusUnauthorized},
		{"player creates", http.MethodPost, "/lobbies", playerToken, "", http.StatusForbidden},
		{"unknown join token", http.MethodPost, "/lobbies/join", playerToken, `{"token":"nope"}`, http.StatusNotFound},
		{"empty join token", http.MethodPost, "/lobbies/join", playerToken, `{"token":""}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/lobbies/join", playerToken, `{"code":"x"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/lobbies/join", playerToken, `{"token":`, http.StatusBadRequest},
		{"bad lobby id", http.MethodGet, "/lobbies/not-a-uuid", playerToken, "", http.StatusBadRequest},
		{"no match yet", http.MethodGet, "/lobbies/" + created.ID.String() + "/match", playerToken, "", http.StatusNotFound},
		{"unknown lobby", http.MethodGet, "/lobbies/" + uuid.NewString(), playerToken, "", http.StatusNotFound},
		{"bad goal", http.MethodPost, "/lobbies/" + created.ID.String() + "/settings", playerToken, `{"point_goal":12}`, http.StatusBadRequest},
		{"ready without membership", http.MethodPost, "/lobbies/" + created.ID.String() + "/ready", playerToken, `{"ready":true}`, http.StatusForbidden},
		{"ready missing", http.MethodPost, "/lobbies/" + created.ID.String() + "/ready", playerToken, `{}`, http.StatusBadRequest},
		{"other organizer completes", http.MethodPost, "/matches/complete", otherOrgToken, `{"lobby_id":"` + created.ID.String() + `","winner_team":"A"}`, http.StatusForbidden},
		{"complete bad team", http.MethodPost, "/matches/complete", orgToken, `{"lobby_id":"` + created.ID.String() + `","winner_team":"C"}`, http.StatusBadRequest},
		{"player completes", http.MethodPost, "/matches/complete", playerToken, `{"lobby_id":"` + created.ID.String() + `","winner_team":"A"}`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestJoinFullLobbyConflicts(t *testing.T) {
	api := newTestAPI(t)
	_, orgToken := tokenFor(t, models.RoleOrganizer)
	created := api.createLobby(t, orgToken)
	body := `{"token":"` + created.Token + `"}`

	for i := 0; i < 4; i++ {
		_, tok := tokenFor(t, models.RolePlayer)
		require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/lobbies/join", tok, body).Code)
	}
	_, late := tokenFor(t, models.RolePlayer)
	w := api.do(t, http.MethodPost, "/lobbies/join", late, body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "lobby is full")
}

func TestCookieAuth(t *testing.T) {
	api := newTestAPI(t)
	_, tok := tokenFor(t, models.RolePlayer)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Cookie", "auth_token="+tok)
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLobbySocketStreamsChanges(t *testing.T) {
	api := newTestAPI(t)
	ts := httptest.NewServer(api.handler)
	defer ts.Close()

	_, orgToken := tokenFor(t, models.RoleOrganizer)
	created := api.createLobby(t, orgToken)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/lobbies/" + created.ID.String() + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"lobby"},
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + orgToken}},
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	var msg lobbyMessage
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	assert.Equal(t, "lobby_state", msg.Type)
	require.NotNil(t, msg.Lobby)
	assert.Equal(t, created.Token, msg.Lobby.Lobby.Token)

	_, tok := tokenFor(t, models.RolePlayer)
	w := api.do(t, http.MethodPost, "/lobbies/join", tok, `{"token":"`+created.Token+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, wsjson.Read(ctx, c, &msg))
	assert.Equal(t, string(models.EventMemberJoined), msg.Type)
	require.NotNil(t, msg.Lobby)
	assert.Len(t, msg.Lobby.Players, 1)

	// organizers are not members, so readiness is refused over the socket too
	require.NoError(t, wsjson.Write(ctx, c, clientMessage{Type: "ready"}))
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "not a member")
}

func TestLobbySocketRejectsOutsiders(t *testing.T) {
	api := newTestAPI(t)
	_, orgToken := tokenFor(t, models.RoleOrganizer)
	created := api.createLobby(t, orgToken)
	_, outsider := tokenFor(t, models.RolePlayer)

	w := api.do(t, http.MethodGet, "/lobbies/"+created.ID.String()+"/ws", outsider, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// The join token uses one JSON key everywhere it appears.
func TestJoinTokenKeyIsConsistent(t *testing.T) {
	api := newTestAPI(t)
	_, orgToken := tokenFor(t, models.RoleOrganizer)
	created := api.createLobby(t, orgToken)

	w := api.do(t, http.MethodGet, "/lobbies/"+created.ID.String(), orgToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Lobby map[string]interface{} `json:"lobby"`
	}
	decode(t, w, &detail)
	assert.Equal(t, created.Token, detail.Lobby["token"])
	assert.NotContains(t, detail.Lobby, "qr_payload")

	w = api.do(t, http.MethodGet, "/lobbies", orgToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Lobbies []map[string]interface{} `json:"lobbies"`
	}
	decode(t, w, &list)
	require.Len(t, list.Lobbies, 1)
	token, ok := list.Lobbies[0]["token"].(string)
	require.True(t, ok)

	_, playerToken := tokenFor(t, models.RolePlayer)
	w = api.do(t, http.MethodPost, "/lobbies/join", playerToken, `{"token":"`+token+`"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
