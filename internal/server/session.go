package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/scan"
	"github.com/franckalain/nutriscan/internal/scanner"
)

const writeWait = 10 * time.Second

// Message types exchanged with the app.
const (
	msgScan            = "scan"
	msgState           = "state"
	msgScanResponse    = "scan_response"
	msgCaptureResponse = "capture_response"
	msgError           = "error"
)

type inbound struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// session is one connected app. It owns the scan controller for that app
// and relays scanner requests to it.
type session struct {
	id         string
	conn       *websocket.Conn
	controller *scan.Controller
	log        logger.ILogger
	// debug adds parse errors to the error messages sent to the app.
	debug      bool

	writeMu sync.Mutex
	pending sync.Map // request id -> chan json.RawMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSession(conn *websocket.Conn, log logger.ILogger, debug bool) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:     uuid.New().String(),
		conn:   conn,
		log:    log,
		debug:  debug,
		ctx:    ctx,
		cancel: cancel,
	}
}

// run reads messages until the connection closes, then waits for any scan
// still in flight to unwind.
func (s *session) run() {
	defer func() {
		s.cancel()
		s.wg.Wait()
		_ = s.conn.Close()
	}()

	s.sendMessage(msgState, "", s.controller.Snapshot())

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("server", "error reading message", map[string]interface{}{"session": s.id, "error": err.Error()})
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("server", "error parsing message", map[string]interface{}{"session": s.id, "error": err.Error()})
			message := "Invalid message format"
			if s.debug {
				message += ": " + err.Error()
			}
			s.sendError(message)
			continue
		}
		s.handleMessage(msg)
	}
}

func (s *session) handleMessage(msg inbound) {
	switch msg.Type {
	case msgScan:
		s.startScan()
	case msgState:
		s.sendMessage(msgState, "", s.controller.Snapshot())
	case msgScanResponse, msgCaptureResponse:
		s.resolve(msg.ID, msg.Data)
	default:
		s.sendError("Unknown message type")
	}
}

// startScan runs the attempt off the read loop so device replies can still
// be received while it waits.
func (s *session) startScan() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.controller.Trigger(s.ctx); err != nil {
			s.sendError(err.Error())
		}
	}()
}

// Request implements scanner.Relay.
func (s *session) Request(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	id := uuid.New().String()
	reply := make(chan json.RawMessage, 1)
	s.pending.Store(id, reply)
	defer s.pending.Delete(id)

	if err := s.write(outbound{Type: kind, ID: id, Data: payload}); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", kind, err)
	}

	select {
	case data := <-reply:
		return data, nil
	case <-s.ctx.Done():
		return nil, scanner.ErrRelayClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) resolve(id string, data json.RawMessage) {
	value, ok := s.pending.LoadAndDelete(id)
	if !ok {
		s.log.Warn("server", "reply for unknown request", map[string]interface{}{"session": s.id, "id": id})
		s.sendError("Unknown request id")
		return
	}
	value.(chan json.RawMessage) <- data
}

// publish is the controller listener.
func (s *session) publish(snap scan.Snapshot) {
	s.sendMessage(msgState, "", snap)
}

func (s *session) close() {
	s.cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
}

func (s *session) sendMessage(messageType, id string, data any) {
	if err := s.write(outbound{Type: messageType, ID: id, Data: data}); err != nil {
		s.log.Debug("server", "error sending message", map[string]interface{}{"session": s.id, "type": messageType, "error": err.Error()})
	}
}

func (s *session) sendError(message string) {
	if err := s.write(outbound{Type: msgError, Message: message}); err != nil {
		s.log.Debug("server", "error sending error message", map[string]interface{}{"session": s.id, "error": err.Error()})
	}
}

func (s *session) write(msg outbound) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}
