package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// Packet is the unified WS message envelope. Replies echo the request Seq.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one connected user's WebSocket.
type Session struct {
	UserID   string
	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	closeOnce sync.Once
	logger    *zap.Logger
}

// NewSession creates a Session. The write goroutine starts only when conn is
// non-nil so tests can build bare sessions.
func NewSession(userID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		UserID:   userID,
		Conn:     conn,
		SendChan: make(chan []byte, sendChanBuf),
		Done:     make(chan struct{}),
		logger:   logger,
	}
	if conn != nil {
		go s.writePump()
	}
	return s
}

// writePump drains SendChan and writes to the connection, pinging
// periodically to detect dead peers.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error", zap.String("user_id", s.UserID), zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes and queues a packet. Drops it if the session is closed or
// its buffer is full.
func (s *Session) Send(seq uint64, msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("ws encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	s.SendPacket(&Packet{Seq: seq, Type: msgType, Payload: raw})
}

// SendPacket queues an already-built packet.
func (s *Session) SendPacket(pkt *Packet) {
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
	default:
		s.logger.Warn("send channel full, dropping packet",
			zap.String("user_id", s.UserID),
			zap.String("type", pkt.Type))
	}
}

// Close signals the write pump to shut down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

func (s *Session) setReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
