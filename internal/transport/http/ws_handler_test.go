package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vityaded/Kahoot-clone/internal/app"
	"github.com/vityaded/Kahoot-clone/internal/domain"
	"github.com/vityaded/Kahoot-clone/internal/evaluate"
	"github.com/vityaded/Kahoot-clone/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := app.NewEngine(memory.NewTemplateStore(), memory.NewSnapshotStore(), evaluate.New(evaluate.ProfileNormal))
	handler := NewWSHandler(engine, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}

// waitFor skips interleaved broadcasts (leaderboard, countdown ticks) until
// the wanted message type arrives.
func waitFor(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, payload := readNext(conn, t)
		if typ == want {
			return payload
		}
		if typ == "error" {
			t.Fatalf("waiting for %s, got error: %v", want, payload)
		}
	}
	t.Fatalf("did not receive %s within 10 messages", want)
	return nil
}

func TestWebSocketQuizFlow(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server)
	send(t, host, "createQuiz", map[string]any{
		"title":           "Capitals",
		"questionSeconds": 20,
		"questions": []map[string]any{
			{"prompt": "Capital of France?", "answer": "Paris"},
			{"prompt": "Capital of Japan?", "answer": "Tokyo"},
		},
	})
	created := waitFor(host, t, "quizCreated")
	roomCode, _ := created["roomCode"].(string)
	if roomCode == "" {
		t.Fatalf("quizCreated without roomCode: %v", created)
	}

	send(t, host, "claimHost", map[string]any{"roomCode": roomCode})
	claimed := waitFor(host, t, "hostClaimed")
	if claimed["phase"] != string(domain.PhaseLobby) {
		t.Fatalf("hostClaimed phase = %v, want lobby", claimed["phase"])
	}

	player := dialWS(t, server)
	send(t, player, "join", map[string]any{"roomCode": roomCode, "displayName": "Alice"})
	joined := waitFor(player, t, "joined")
	playerID, _ := joined["playerId"].(string)
	if playerID == "" {
		t.Fatalf("joined without playerId: %v", joined)
	}

	send(t, host, "startQuestion", map[string]any{"roomCode": roomCode})
	question := waitFor(player, t, "questionStarted")
	if question["prompt"] != "Capital of France?" {
		t.Fatalf("questionStarted = %v", question)
	}
	waitFor(host, t, "questionStarted")

	send(t, player, "submitAnswer", map[string]any{"roomCode": roomCode, "text": "paris"})
	result := waitFor(player, t, "answerResult")
	if result["verdict"] != string(domain.VerdictCorrect) {
		t.Fatalf("answerResult = %v, want correct", result)
	}
	if result["earnedScore"].(float64) <= 0 {
		t.Fatalf("answerResult earnedScore = %v, want positive", result["earnedScore"])
	}

	// The sole connected player answered, so the question fast-forwards and
	// everyone sees the reveal.
	ended := waitFor(host, t, "questionEnded")
	if ended["correctAnswer"] != "Paris" {
		t.Fatalf("questionEnded = %v", ended)
	}
	waitFor(player, t, "questionEnded")
	waitFor(player, t, "leaderboardShow")
}

func TestWebSocketErrorsStayPrivate(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server)
	send(t, host, "createQuiz", map[string]any{
		"title":     "Solo",
		"questions": []map[string]any{{"prompt": "p", "answer": "a"}},
	})
	created := waitFor(host, t, "quizCreated")
	roomCode := created["roomCode"].(string)

	send(t, host, "claimHost", map[string]any{"roomCode": roomCode})
	waitFor(host, t, "hostClaimed")

	// A second connection cannot steal the host binding; only it sees the
	// rejection.
	intruder := dialWS(t, server)
	send(t, intruder, "claimHost", map[string]any{"roomCode": roomCode})
	typ, payload := readNext(intruder, t)
	if typ != "error" {
		t.Fatalf("intruder got %s %v, want error", typ, payload)
	}

	// Unknown room and malformed payloads also answer with private errors.
	send(t, intruder, "join", map[string]any{"roomCode": "NOPE42", "displayName": "Eve"})
	typ, _ = readNext(intruder, t)
	if typ != "error" {
		t.Fatalf("bad-room join got %s, want error", typ)
	}

	send(t, intruder, "bogusType", map[string]any{})
	typ, _ = readNext(intruder, t)
	if typ != "error" {
		t.Fatalf("unknown type got %s, want error", typ)
	}
}

func TestWebSocketAnswerBeforeJoinRejected(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server)
	send(t, host, "createQuiz", map[string]any{
		"title":     "Solo",
		"questions": []map[string]any{{"prompt": "p", "answer": "a"}},
	})
	created := waitFor(host, t, "quizCreated")
	roomCode := created["roomCode"].(string)

	send(t, host, "submitAnswer", map[string]any{"roomCode": roomCode, "text": "a"})
	typ, _ := readNext(host, t)
	if typ != "error" {
		t.Fatalf("pre-join submit got %s, want error", typ)
	}
}
