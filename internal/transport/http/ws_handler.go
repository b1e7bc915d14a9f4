package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vityaded/Kahoot-clone/internal/app"
	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// WSHandler upgrades connections and bridges them to the session engine:
// inbound {type, payload} commands in, room events and private replies out.
type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(engine *app.Engine, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		engine: engine,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type createQuizPayload struct {
	Title           string            `json:"title"`
	QuestionSeconds int               `json:"questionSeconds"`
	Questions       []domain.Question `json:"questions"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type joinPayload struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
	PlayerID    string `json:"playerId"`
}

type reconnectPayload struct {
	PlayerID string `json:"playerId"`
	RoomCode string `json:"roomCode"`
}

type configureRunPayload struct {
	RoomCode string `json:"roomCode"`
	Count    int    `json:"count"`
	Shuffle  bool   `json:"shuffle"`
}

type submitAnswerPayload struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

type updateDurationPayload struct {
	RoomCode string `json:"roomCode"`
	Seconds  int    `json:"seconds"`
}

type joinedPayload struct {
	PlayerID string          `json:"playerId"`
	State    app.SessionView `json:"state"`
}

// wsConn is the per-connection state built up as commands arrive.
type wsConn struct {
	connID   string
	roomCode string
	playerID string
	send     chan outboundMessage
}

// ServeWS runs one client connection until it drops.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := &wsConn{
		connID: uuid.NewString(),
		send:   make(chan outboundMessage, 32),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	var cancelSub func()
	var forwarders sync.WaitGroup
	closeSignals := make(chan struct{})

	// attach forwards a room's event stream onto this connection's writer.
	attach := func(roomCode string) {
		if cancelSub != nil {
			cancelSub()
			cancelSub = nil
		}
		events, cancel, err := h.engine.Subscribe(roomCode)
		if err != nil {
			return
		}
		cancelSub = cancel
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					select {
					case c.send <- outboundMessage{Type: ev.Type, Payload: ev.Payload}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, c, inbound, attach)
	}

	if c.roomCode != "" {
		h.engine.Disconnect(c.roomCode, c.connID)
	}
	if cancelSub != nil {
		cancelSub()
	}
	close(closeSignals)
	forwarders.Wait()
	close(c.send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, c *wsConn, inbound inboundMessage, attach func(string)) {
	ctx := r.Context()

	fail := func(err error) {
		c.send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	badPayload := func() {
		c.send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid payload"}}
	}

	switch inbound.Type {
	case "createQuiz":
		var p createQuizPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		roomCode, err := h.engine.CreateQuiz(ctx, p.Title, p.QuestionSeconds, p.Questions)
		if err != nil {
			fail(err)
			return
		}
		c.send <- outboundMessage{Type: "quizCreated", Payload: roomPayload{RoomCode: roomCode}}

	case "claimHost":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		view, err := h.engine.ClaimHost(ctx, p.RoomCode, c.connID)
		if err != nil {
			fail(err)
			return
		}
		c.roomCode = p.RoomCode
		attach(p.RoomCode)
		c.send <- outboundMessage{Type: "hostClaimed", Payload: view}

	case "join":
		var p joinPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		playerID, view, err := h.engine.Join(ctx, p.RoomCode, c.connID, p.DisplayName, p.PlayerID)
		if err != nil {
			fail(err)
			return
		}
		c.roomCode = p.RoomCode
		c.playerID = playerID
		attach(p.RoomCode)
		c.send <- outboundMessage{Type: "joined", Payload: joinedPayload{PlayerID: playerID, State: view}}

	case "reconnect":
		var p reconnectPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		view, err := h.engine.Reconnect(ctx, p.PlayerID, p.RoomCode, c.connID)
		if err != nil {
			fail(err)
			return
		}
		c.roomCode = view.RoomCode
		c.playerID = p.PlayerID
		attach(view.RoomCode)
		c.send <- outboundMessage{Type: "reconnected", Payload: joinedPayload{PlayerID: p.PlayerID, State: view}}

	case "startQuestion":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		if err := h.engine.StartQuestion(ctx, p.RoomCode, c.connID); err != nil {
			fail(err)
		}

	case "endQuestion":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		if err := h.engine.EndQuestion(ctx, p.RoomCode, c.connID); err != nil {
			fail(err)
		}

	case "configureRun":
		var p configureRunPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		if err := h.engine.ConfigureRun(ctx, p.RoomCode, c.connID, p.Count, p.Shuffle); err != nil {
			fail(err)
		}

	case "updateDuration":
		var p updateDurationPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		if err := h.engine.UpdateDuration(ctx, p.RoomCode, c.connID, p.Seconds); err != nil {
			fail(err)
		}

	case "submitAnswer":
		var p submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			badPayload()
			return
		}
		if c.playerID == "" {
			fail(domain.ErrParticipantNotFound)
			return
		}
		result, err := h.engine.SubmitAnswer(ctx, p.RoomCode, c.playerID, p.Text)
		if err != nil {
			fail(err)
			return
		}
		c.send <- outboundMessage{Type: "answerResult", Payload: result}

	default:
		c.send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}
