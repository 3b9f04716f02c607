package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"authform/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Listener is one websocket connection receiving auth events.
type Listener struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan *models.Event
	Hub    *Hub
}

// Hub fans auth events out to every connected listener.
type Hub struct {
	listeners  map[string]*Listener
	broadcast  chan *models.Event
	register   chan *Listener
	unregister chan *Listener
	done       chan struct{}
	running    atomic.Bool
	mutex      sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		listeners:  make(map[string]*Listener),
		broadcast:  make(chan *models.Event, 256),
		register:   make(chan *Listener),
		unregister: make(chan *Listener),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every listener.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for id, l := range h.listeners {
				close(l.Send)
				delete(h.listeners, id)
			}
			h.mutex.Unlock()
			return

		case l := <-h.register:
			h.mutex.Lock()
			h.listeners[l.ID] = l
			h.mutex.Unlock()

		case l := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.listeners[l.ID]; ok {
				delete(h.listeners, l.ID)
				close(l.Send)
			}
			h.mutex.Unlock()

		case event := <-h.broadcast:
			h.mutex.Lock()
			for id, l := range h.listeners {
				select {
				case l.Send <- event:
				default:
					h.logger.Warn("dropping slow listener", zap.String("listener", id))
					close(l.Send)
					delete(h.listeners, id)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish queues event for broadcast without blocking the caller. Events are
// dropped when the queue is full.
func (h *Hub) Publish(event *models.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event queue full, dropping event", zap.String("type", event.Type))
	}
}

// Running reports whether Run is serving the hub.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// join hands l to the running hub. It fails at once when Run was never
// started or has returned.
func (h *Hub) join(l *Listener) bool {
	if !h.running.Load() {
		return false
	}
	select {
	case h.register <- l:
		return true
	case <-h.done:
		return false
	}
}

// Len reports the number of connected listeners.
func (h *Hub) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.listeners)
}

func (l *Listener) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-l.Send:
			_ = l.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = l.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := l.Conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = l.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; listeners do not send events.
func (l *Listener) readPump() {
	defer func() {
		select {
		case l.Hub.unregister <- l:
		case <-l.Hub.done:
		}
		l.Conn.Close()
	}()

	l.Conn.SetReadLimit(512)
	_ = l.Conn.SetReadDeadline(time.Now().Add(pongWait))
	l.Conn.SetPongHandler(func(string) error {
		return l.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := l.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l.Hub.logger.Debug("listener closed", zap.String("listener", l.ID), zap.Error(err))
			}
			return
		}
	}
}
