package session

import "sync"

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a non-blocking, user-facing message.
type Notice struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

type NopNotifier struct{}

func (NopNotifier) Notify(Notice) {}

// Notices collects notices for the current request so they can be returned with the response.
type Notices struct {
	mu   sync.Mutex
	list []Notice
}

func (n *Notices) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, notice)
}

func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.list...)
}
