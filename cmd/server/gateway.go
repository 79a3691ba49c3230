package main

import (
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/internal"
	"chat-relay/services"
	"chat-relay/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// gateway is the HTTP/WebSocket front door. It resolves bearer tokens,
// upgrades chat connections, and maps error kinds to status codes; every
// decision beyond that belongs to the service layer.
type gateway struct {
	log      *slog.Logger
	config   internal.Config
	tokens   *auth.TokenManager
	accounts *auth.Accounts
	chat     services.IChatService
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type registerRequest struct {
	UserID    string   `json:"user_id"`
	TenantID  string   `json:"tenant_id"`
	Password  string   `json:"password"`
	Groups    []string `json:"groups"`
	Moderator []string `json:"moderator_groups"`
}

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// inboundCommand is the JSON frame a connected client sends over the
// socket. History and search go through the HTTP endpoints instead,
// since their responses do not fan out.
type inboundCommand struct {
	Action    string `json:"action"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type commandReply struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (g *gateway) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	err := g.accounts.Register(auth.RegisterRequest{
		UserID:    req.UserID,
		TenantID:  req.TenantID,
		Password:  req.Password,
		Groups:    req.Groups,
		Moderator: req.Moderator,
	})
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (g *gateway) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	token, err := g.accounts.Login(req.UserID, req.Password)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// connect upgrades the request to a WebSocket, joins the requested group,
// and runs the inbound command loop until the client disconnects.
func (g *gateway) connect(w http.ResponseWriter, r *http.Request) {
	identity, err := g.identify(r)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}
	group := domain.GroupID(r.URL.Query().Get("group"))
	if group == "" {
		http.Error(w, "missing group parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	wsSink := sink.NewWebSocketSink(g.log, conn,
		g.config.ConnectionBufferSize, g.config.DeliveryTimeout)

	session, err := g.chat.Join(r.Context(), identity, group, wsSink)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		wsSink.Close()
		return
	}
	defer func() {
		g.chat.Leave(session.Connection)
		wsSink.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd inboundCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			g.reply(wsSink, commandReply{Type: "ERROR", Error: "malformed command"})
			continue
		}
		g.handleCommand(wsSink, session, cmd)
	}
}

func (g *gateway) handleCommand(wsSink *sink.WebSocketSink, session domain.Session, cmd inboundCommand) {
	switch cmd.Action {
	case "post":
		message, err := g.chat.CreateMessage(session, cmd.Content)
		if err != nil {
			g.reply(wsSink, commandReply{Type: "ERROR", Action: cmd.Action, Error: err.Error()})
			return
		}
		g.reply(wsSink, commandReply{Type: "ACK", Action: cmd.Action, MessageID: message.ID.String()})
	case "update":
		messageID, err := uuid.Parse(cmd.MessageID)
		if err != nil {
			g.reply(wsSink, commandReply{Type: "ERROR", Action: cmd.Action, Error: "malformed message_id"})
			return
		}
		if _, err := g.chat.UpdateMessage(session, messageID, cmd.Content); err != nil {
			g.reply(wsSink, commandReply{Type: "ERROR", Action: cmd.Action, MessageID: cmd.MessageID, Error: err.Error()})
			return
		}
		g.reply(wsSink, commandReply{Type: "ACK", Action: cmd.Action, MessageID: cmd.MessageID})
	case "delete":
		messageID, err := uuid.Parse(cmd.MessageID)
		if err != nil {
			g.reply(wsSink, commandReply{Type: "ERROR", Action: cmd.Action, Error: "malformed message_id"})
			return
		}
		if err := g.chat.DeleteMessage(session, messageID); err != nil {
			g.reply(wsSink, commandReply{Type: "ERROR", Action: cmd.Action, MessageID: cmd.MessageID, Error: err.Error()})
			return
		}
		g.reply(wsSink, commandReply{Type: "ACK", Action: cmd.Action, MessageID: cmd.MessageID})
	default:
		g.reply(wsSink, commandReply{Type: "ERROR", Action: cmd.Action, Error: "unknown action"})
	}
}

// history returns a page of a group's messages, newest first, with an
// opaque cursor for the next page.
func (g *gateway) history(w http.ResponseWriter, r *http.Request) {
	_, group, ok := g.memberRequest(w, r)
	if !ok {
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := g.chat.GetMessages(group, cursor)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	snapshots := lo.Map(messages, func(message domain.Message, _ int) domain.Snapshot {
		return message.Snapshot()
	})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"messages": snapshots,
		"cursor":   next,
	})
}

// search runs a full-text query scoped to one group.
func (g *gateway) search(w http.ResponseWriter, r *http.Request) {
	_, group, ok := g.memberRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			http.Error(w, "malformed page parameter", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	hits, total, err := g.chat.SearchMessages(r.Context(), group, query, page)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"hits":  hits,
		"total": total,
	})
}

// memberRequest resolves the token and the group parameter, and rejects
// callers whose claims do not include the group.
func (g *gateway) memberRequest(w http.ResponseWriter, r *http.Request) (domain.Identity, domain.GroupID, bool) {
	identity, err := g.identify(r)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return domain.Identity{}, "", false
	}
	group := domain.GroupID(r.URL.Query().Get("group"))
	if group == "" {
		http.Error(w, "missing group parameter", http.StatusBadRequest)
		return domain.Identity{}, "", false
	}
	if !slices.Contains(identity.Groups, string(group)) {
		http.Error(w, "not a member of this group", http.StatusForbidden)
		return domain.Identity{}, "", false
	}
	return identity, group, true
}

// identify extracts the bearer token from the Authorization header, or
// from the token query parameter for WebSocket clients that cannot set
// headers.
func (g *gateway) identify(r *http.Request) (domain.Identity, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return domain.Identity{}, errors.ErrUnauthorized
	}
	return g.tokens.Validate(token)
}

func (g *gateway) reply(wsSink *sink.WebSocketSink, reply commandReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := wsSink.Send(data); err != nil {
		g.log.Debug("reply dropped, sink closed", "action", reply.Action)
	}
}

func statusFromError(err error) int {
	switch {
	case goerrors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case goerrors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden
	case goerrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, errors.ErrInvalidCommand):
		return http.StatusBadRequest
	case goerrors.Is(err, errors.ErrAlreadyJoined):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
