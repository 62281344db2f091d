package player

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/game/replication"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session represents a connected player's WebSocket session. It is the
// bridge between the zone goroutine and the connection: the zone pushes
// events through Push, the writePump drains them to the socket.
type Session struct {
	AccountID int64
	CharID    int64
	CharName  string
	ZoneID    string

	Conn *websocket.Conn

	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64 // highest client seq accepted, anti-replay

	view   *replication.View
	outSeq atomic.Uint64

	mu     sync.Mutex
	logger *zap.Logger
}

// NewSession creates a Session with its write goroutine started.
func NewSession(accountID, charID int64, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		AccountID: accountID,
		CharID:    charID,
		Conn:      conn,
		SendChan:  make(chan []byte, sendChanBuf),
		Done:      make(chan struct{}),
		view:      replication.NewView(),
		logger:    logger,
	}
	go s.writePump()
	return s
}

// SessionCharID identifies the session's character to the zone.
func (s *Session) SessionCharID() int64 { return s.CharID }

// View is this observer's replication state.
func (s *Session) View() *replication.View { return s.view }

// Push encodes an event packet and queues it for the write pump. Called
// from the zone goroutine; never blocks.
func (s *Session) Push(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("push marshal failed",
			zap.String("type", event), zap.Error(err))
		return
	}
	s.Send(&Packet{
		Seq:     s.outSeq.Add(1),
		Type:    event,
		Payload: payload,
	})
}

// writePump drains SendChan and writes to the WebSocket connection.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int64("account_id", s.AccountID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and sends it non-blocking. Drops if channel full or closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
		// Session closed while sending
	default:
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping packet",
				zap.Int64("account_id", s.AccountID),
				zap.String("type", pkt.Type))
		}
	}
}

// Close signals the writePump to shut down.
func (s *Session) Close() {
	select {
	case <-s.Done:
	default:
		close(s.Done)
	}
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SendHeartbeatPong sends a pong packet in response to a client ping.
func (s *Session) SendHeartbeatPong(clientTS int64) {
	type pongPayload struct {
		ClientTS int64 `json:"client_ts"`
		ServerTS int64 `json:"server_ts"`
	}
	payload, _ := json.Marshal(pongPayload{
		ClientTS: clientTS,
		ServerTS: time.Now().UnixMilli(),
	})
	s.Send(&Packet{Seq: s.outSeq.Add(1), Type: "pong", Payload: payload})
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}

// SetZone records which zone the character currently occupies.
func (s *Session) SetZone(zoneID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ZoneID = zoneID
}

// Zone returns the character's current zone id.
func (s *Session) Zone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ZoneID
}
