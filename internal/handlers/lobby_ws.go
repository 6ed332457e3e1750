// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/hub"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/middleware"
	"github.com/primepickle/courtside/internal/models"
	"github.com/sirupsen/logrus"
)

// lobbyMessage is a snapshot pushed to the client whenever the lobby changes.
type lobbyMessage struct {
	Type    string              `json:"type"`
	Version int64               `json:"version,omitempty"`
	Lobby   *models.LobbyDetail `json:"lobby,omitempty"`
	Message string              `json:"message,omitempty"`
}

// clientMessage is an action sent by the client over the socket.
type clientMessage struct {
	Type      string      `json:"type"`
	Team      models.Team `json:"team,omitempty"`
	PointGoal int         `json:"point_goal,omitempty"`
}

// LobbyWSHandler upgrades to a websocket that streams lobby snapshots to members
// and the owning organizer. Clients may also send ready, unready, claim_captain
// and set_goal actions instead of using the REST routes.
func LobbyWSHandler(logger *logrus.Logger, svc *lobby.Service, h *hub.Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		lobbyID, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}

		detail, err := svc.GetLobby(r.Context(), id, lobbyID)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		if !canWatch(id, detail) {
			errorResponse(w, http.StatusForbidden, "not a member of this lobby")
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		// subscribe before the first snapshot so no change between the two is missed
		events, unsubscribe := h.Subscribe(lobbyID)
		defer unsubscribe()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := wsjson.Write(ctx, c, lobbyMessage{Type: "lobby_state", Version: detail.Lobby.Version, Lobby: detail}); err != nil {
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
			return
		}

		go readPump(ctx, cancel, c, svc, id, lobbyID, logger)

		err = writePump(ctx, c, svc, id, lobbyID, events)
		switch {
		case errors.Is(err, errLobbyClosed):
			c.Close(LobbyClosedError, "match completed")
			err = nil
		case err == nil:
			c.Close(websocket.StatusNormalClosure, "")
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

var errLobbyClosed = errors.New("lobby closed")

// writePump pushes a fresh snapshot for every lobby event until ctx ends or the
// lobby completes.
func writePump(ctx context.Context, c *websocket.Conn, svc *lobby.Service, id models.Identity, lobbyID uuid.UUID, events <-chan models.LobbyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			detail, err := svc.GetLobby(ctx, id, lobbyID)
			if err != nil {
				return err
			}
			msg := lobbyMessage{Type: string(ev.Type), Version: ev.Version, Lobby: detail}
			if err := wsjson.Write(ctx, c, msg); err != nil {
				return err
			}
			if ev.Type == models.EventMatchCompleted {
				return errLobbyClosed
			}
		}
	}
}

// readPump applies client actions until the connection closes, then cancels ctx.
func readPump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, svc *lobby.Service, id models.Identity, lobbyID uuid.UUID, logger *logrus.Logger) {
	defer cancel()
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				logger.WithField("lobby_id", lobbyID).Debugf("lobby socket read error: %v", err)
			}
			return
		}
		if err := applyClientMessage(ctx, svc, id, lobbyID, msg); err != nil {
			_ = wsjson.Write(ctx, c, lobbyMessage{Type: "error", Message: err.Error()})
		}
	}
}

func applyClientMessage(ctx context.Context, svc *lobby.Service, id models.Identity, lobbyID uuid.UUID, msg clientMessage) error {
	var err error
	switch msg.Type {
	case "ready":
		_, err = svc.SetReady(ctx, id, lobbyID, true)
	case "unready":
		_, err = svc.SetReady(ctx, id, lobbyID, false)
	case "claim_captain":
		_, err = svc.ClaimCaptain(ctx, id, lobbyID, msg.Team)
	case "set_goal":
		_, err = svc.SetPointGoal(ctx, id, lobbyID, msg.PointGoal)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	if err != nil && statusFor(err) == http.StatusInternalServerError {
		return errors.New("the server encountered a problem and could not process your request")
	}
	return err
}

// canWatch reports whether id may follow the lobby: its members and its organizer.
func canWatch(id models.Identity, detail *models.LobbyDetail) bool {
	if detail.Lobby.OrganizerID == id.ID {
		return true
	}
	for _, p := range detail.Players {
		if p.ID == id.ID {
			return true
		}
	}
	return false
}

// OriginPatterns turns CORS origins ("https://app.example.com") into the host
// patterns the websocket origin check expects.
func OriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}
