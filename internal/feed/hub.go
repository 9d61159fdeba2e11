// Package feed pushes the display state to renderer clients over WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/display"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	MessageTypeState = "state"
	requestSnapshot  = "snapshot"
)

// StateSource yields the state to broadcast.
type StateSource interface {
	Current() *display.State
}

type Message struct {
	Type   string         `json:"type"`
	Data   *display.State `json:"data"`
	SentAt time.Time      `json:"sent_at"`
}

type Options struct {
	Interval time.Duration
	Logger   *log.Logger
}

type Option func(*Options)

func WithInterval(d time.Duration) Option {
	return func(o *Options) { o.Interval = d }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

type Hub struct {
	source   StateSource
	interval time.Duration
	logger   *log.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	resendReq  chan *Client
	done       chan struct{}
	last       []byte
	count      atomic.Int64
}

func NewHub(source StateSource, opts ...Option) *Hub {
	o := &Options{Interval: constants.DefaultFeedInterval}
	for _, opt := range opts {
		opt(o)
	}
	if o.Interval <= 0 {
		o.Interval = constants.DefaultFeedInterval
	}
	if o.Logger == nil {
		o.Logger = log.Component("feed")
	}
	return &Hub{
		source:   source,
		interval: o.Interval,
		logger:   o.Logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		resendReq:  make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Register hands a client to the hub. It returns false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) resend(c *Client) {
	select {
	case h.resendReq <- c:
	case <-h.done:
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to upgrade feed connection")
	}
	id := uuid.New()
	client := NewClient(id, conn, h)
	if !h.Register(client) {
		_ = conn.Close()
		return uuid.Nil, errors.New("feed hub is not running")
	}
	go client.Write()
	go client.Read()
	return id, nil
}

// Run polls the state source every interval and broadcasts it until ctx is
// cancelled. All client bookkeeping happens on this goroutine.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer func() {
		ticker.Stop()
		close(h.done)
		for c := range h.clients {
			h.drop(c)
		}
		h.logger.Info("feed hub stopped")
	}()

	h.logger.Info("feed hub started", zap.Duration("interval", h.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			h.logger.Info("feed client connected", zap.String("client_id", c.ID.String()))
			if h.last != nil {
				h.deliver(c, h.last)
			}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("feed client disconnected", zap.String("client_id", c.ID.String()))
			}
		case c := <-h.resendReq:
			if _, ok := h.clients[c]; ok && h.last != nil {
				h.deliver(c, h.last)
			}
		case now := <-ticker.C:
			payload, err := h.encode(now)
			if err != nil {
				h.logger.Error("failed to encode display state", zap.Error(err))
				continue
			}
			if payload == nil {
				continue
			}
			h.last = payload
			for c := range h.clients {
				h.deliver(c, payload)
			}
		}
	}
}

func (h *Hub) encode(now time.Time) ([]byte, error) {
	st := h.source.Current()
	if st == nil {
		return nil, nil
	}
	payload, err := json.Marshal(Message{Type: MessageTypeState, Data: st, SentAt: now})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal feed message")
	}
	return payload, nil
}

// deliver never blocks the hub; a client that cannot keep up is dropped.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("feed client too slow, dropping", zap.String("client_id", c.ID.String()))
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.FeedClients.Set(float64(len(h.clients)))
}
