// Package notify delivers the success and error messages produced by user
// actions.
package notify

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"veiled-verse/internal/websocket"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Kind tags notifications that clients may react to beyond showing them.
type Kind string

const KindQueueDrained Kind = "queue_drained"

type Notification struct {
	Level   Level     `json:"level"`
	Kind    Kind      `json:"kind,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EventType is the websocket event a notification is pushed as.
func (n Notification) EventType() string {
	if n.Kind == KindQueueDrained {
		return websocket.EventQueueDrained
	}
	return websocket.EventNotification
}

type Notifier interface {
	Notify(userID string, n Notification)
}

func Success(msg string) Notification {
	return Notification{Level: LevelSuccess, Message: msg, At: time.Now().UTC()}
}

func Error(msg string) Notification {
	return Notification{Level: LevelError, Message: msg, At: time.Now().UTC()}
}

func Info(msg string) Notification {
	return Notification{Level: LevelInfo, Message: msg, At: time.Now().UTC()}
}

// QueueDrained reports offline changes that reached the document store.
func QueueDrained(replayed int) Notification {
	n := Info(fmt.Sprintf("Synced %d offline change(s)", replayed))
	n.Kind = KindQueueDrained
	return n
}

// Log writes notifications to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{logger: log}
}

func (l *Log) Notify(userID string, n Notification) {
	l.logger.Debug("notification",
		zap.String(logger.FieldUserID, userID),
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message))
}

// Hub pushes notifications to the user's open websockets.
type Hub struct {
	hub *websocket.Hub
}

func NewHub(hub *websocket.Hub) *Hub {
	return &Hub{hub: hub}
}

func (h *Hub) Notify(userID string, n Notification) {
	if h.hub == nil {
		return
	}
	h.hub.SendToUser(userID, websocket.Event{Type: n.EventType(), Payload: n})
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(userID string, n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(userID, n)
		}
	}
}

// Recorder keeps the most recent notifications in memory, oldest first.
// A zero Limit keeps everything.
type Recorder struct {
	Limit int

	mu  sync.Mutex
	all []Notification
}

func NewRecorder(limit int) *Recorder {
	return &Recorder{Limit: limit}
}

func (r *Recorder) Notify(_ string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
	if r.Limit > 0 && len(r.all) > r.Limit {
		r.all = slices.Clone(r.all[len(r.all)-r.Limit:])
	}
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.all)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}
