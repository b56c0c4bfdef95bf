package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperrixel/logos/internal/router"
	"github.com/hyperrixel/logos/internal/runtime"
	"github.com/hyperrixel/logos/internal/wire"
	"github.com/hyperrixel/logos/pkg/cursor"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// maxFilterLen bounds CEL filter expressions to avoid abuse.
const maxFilterLen = 2048

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SubscribeController serves live entry streams over SSE and WebSocket.
//
// Both endpoints share the router's backfill-then-live contract: history
// from the cursor first, then new commits in order, with per-entry
// authorization at delivery time.
type SubscribeController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewSubscribeController creates a new subscribe controller.
func NewSubscribeController(rt *runtime.Runtime, logger logpkg.Logger) *SubscribeController {
	if logger == nil {
		logger = rt.Logger()
	}
	return &SubscribeController{rt: rt, logger: logger.With(logpkg.Component("http"))}
}

// RegisterRoutes registers streaming routes with the given mux.
func (c *SubscribeController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/subscribe", c.handleSubscribeSSE)
	mux.HandleFunc("/v1/subscribe/ws", c.handleSubscribeWS)
}

// filterFromQuery builds the router filter and resume cursor from query
// params: tags, authors, from_ms, to_ms, filter (CEL) and cursor.
func filterFromQuery(q url.Values) (router.Filter, cursor.Cursor, error) {
	f := router.Filter{
		Tags:    splitCSV(q.Get("tags")),
		Authors: splitCSV(q.Get("authors")),
		FromMs:  parseTimestamp(q.Get("from_ms")),
		ToMs:    parseTimestamp(q.Get("to_ms")),
	}
	if expr := q.Get("filter"); expr != "" {
		if len(expr) > maxFilterLen {
			return f, cursor.Zero, errors.New("filter too long")
		}
		f.Expr = expr
	}
	cur, err := cursor.Parse(q.Get("cursor"))
	if err != nil {
		return f, cursor.Zero, err
	}
	return f, cur, nil
}

// sseEvent is the JSON payload of one SSE data line.
type sseEvent struct {
	Cursor string        `json:"cursor"`
	Entry  wire.Envelope `json:"entry"`
}

// sseSink streams deliveries as Server-Sent Events. Flushes are batched
// into the configured window; a timer drains the tail so the last event
// never lingers in the response buffer.
type sseSink struct {
	w      http.ResponseWriter
	r      *http.Request
	window time.Duration

	mu      sync.Mutex
	pending bool
	armed   bool
	closed  bool
}

func newSSESink(w http.ResponseWriter, r *http.Request, window time.Duration) *sseSink {
	return &sseSink{w: w, r: r, window: window}
}

// Send formats and writes one delivery as an SSE data event. The SSE id
// line carries the resume cursor.
func (s *sseSink) Send(d router.Delivery) error {
	b, err := json.Marshal(sseEvent{Cursor: d.Cursor().String(), Entry: wire.FromEntry(d.Entry)})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sse sink closed")
	}
	if _, err := fmt.Fprintf(s.w, "id: %s\ndata: %s\n\n", d.Cursor(), b); err != nil {
		return err
	}
	s.pending = true
	return nil
}

// Context returns the request context for cancellation.
func (s *sseSink) Context() context.Context { return s.r.Context() }

// Flush pushes buffered events to the client. With a flush window it
// arms a timer instead, coalescing bursts into one flush.
func (s *sseSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending || s.closed {
		return nil
	}
	if s.window <= 0 {
		s.flushLocked()
		return nil
	}
	if !s.armed {
		s.armed = true
		time.AfterFunc(s.window, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.armed = false
			if !s.closed {
				s.flushLocked()
			}
		})
	}
	return nil
}

// Close flushes the tail and detaches from the response writer. Must be
// called before the handler returns; later timer fires become no-ops.
func (s *sseSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.pending {
		s.flushLocked()
	}
	s.closed = true
}

func (s *sseSink) flushLocked() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	s.pending = false
}

// handleSubscribeSSE streams entries over SSE.
// Query params: tags, authors, from_ms, to_ms, filter, cursor.
func (c *SubscribeController) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	principal := principalID(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	f, cur, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_payload", err.Error())
		return
	}

	sub, err := c.rt.Router().Subscribe(r.Context(), principal, f, cur)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_payload", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	window := time.Duration(c.rt.Config().FlushWindowMs) * time.Millisecond
	sink := newSSESink(w, r, window)
	defer sink.Close()

	err = sub.Serve(sink)
	if errors.Is(err, router.ErrSubscriptionOverflow) {
		// The stream is already live; signal resync-by-backfill in-band.
		_, _ = fmt.Fprintf(w, "event: error\ndata: {\"code\":\"subscription_overflow\"}\n\n")
	}
}

// wsSink streams deliveries over one WebSocket connection. Binary frames
// carry CBOR; text frames carry JSON.
type wsSink struct {
	conn  *websocket.Conn
	ctx   context.Context
	codec wire.Codec
}

// Send encodes and writes one delivery as a WebSocket frame.
func (s wsSink) Send(d router.Delivery) error {
	b, err := s.codec.Encode(d.Entry)
	if err != nil {
		return err
	}
	mt := websocket.TextMessage
	if s.codec.Name() != "json" {
		mt = websocket.BinaryMessage
	}
	return s.conn.WriteMessage(mt, b)
}

// Context returns the connection context for cancellation.
func (s wsSink) Context() context.Context { return s.ctx }

// Flush is a no-op: WebSocket frames are written immediately.
func (s wsSink) Flush() error { return nil }

// handleSubscribeWS streams entries over a WebSocket.
// Query params as for SSE, plus format=json|cbor frame encoding.
func (c *SubscribeController) handleSubscribeWS(w http.ResponseWriter, r *http.Request) {
	principal := principalID(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	f, cur, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_payload", err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = c.rt.Config().DefaultFormat
	}
	codec, err := wire.Lookup(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_format", err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: clients send nothing, but reading is how close frames
	// and dropped connections are observed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	sub, err := c.rt.Router().Subscribe(ctx, principal, f, cur)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, err.Error()),
			time.Now().Add(time.Second))
		return
	}

	err = sub.Serve(wsSink{conn: conn, ctx: ctx, codec: codec})
	switch {
	case errors.Is(err, router.ErrSubscriptionOverflow):
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscription overflow"),
			time.Now().Add(time.Second))
	case err == nil || errors.Is(err, context.Canceled):
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	default:
		c.logger.Debug("websocket stream ended", logpkg.Str("principal", principal), logpkg.Err(err))
	}
}
