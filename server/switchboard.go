package server

import (
	"slices"
	"sync"

	"github.com/bsoera/econ/game"
)

const (
	// historySize is the number of chat lines replayed to a client when it connects.
	historySize = 64
)

// history is a ring buffer of recent chat lines.
type history struct {
	lines [][]byte
	start int
	count int
}

func (h *history) push(line []byte) {
	if h.lines == nil {
		h.lines = make([][]byte, historySize)
	}
	lineCopy := make([]byte, len(line))
	copy(lineCopy, line)

	idx := (h.start + h.count) % historySize
	if h.count < historySize {
		h.lines[idx] = lineCopy
		h.count++
	} else {
		h.lines[h.start] = lineCopy
		h.start = (h.start + 1) % historySize
	}
}

func (h *history) getAll() [][]byte {
	if h.count == 0 {
		return nil
	}
	result := make([][]byte, h.count)
	for i := 0; i < h.count; i++ {
		result[i] = h.lines[(h.start+i)%historySize]
	}
	return result
}

// client is what the switchboard needs from a connected session.
type client interface {
	ID() string
	Target() game.Target
	Spectating() bool
	Write(b []byte) (int, error)
}

// Switchboard tracks connected clients in connection order and broadcasts chat to them.
type Switchboard struct {
	mu      sync.RWMutex
	clients []client
	history history
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{}
}

// Attach registers a client. Nil clients are ignored.
func (s *Switchboard) Attach(c client) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.clients, c) {
		s.clients = append(s.clients, c)
	}
}

func (s *Switchboard) Detach(c client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = slices.DeleteFunc(s.clients, func(o client) bool { return o == c })
}

func (s *Switchboard) IsAttached(c client) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.clients, c)
}

// Find returns the client with the given id.
func (s *Switchboard) Find(id string) (client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Roster returns the in-game players in connection order.
func (s *Switchboard) Roster() []game.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []game.Target{}
	for _, c := range s.clients {
		if !c.Spectating() {
			result = append(result, c.Target())
		}
	}
	return result
}

// Broadcast writes b to every client and remembers it for clients connecting later.
// Clients failing the write are detached.
func (s *Switchboard) Broadcast(b []byte) {
	s.mu.Lock()
	s.history.push(b)
	list := slices.Clone(s.clients)
	s.mu.Unlock()

	var failed []client
	for _, c := range list {
		if _, err := c.Write(b); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		s.Detach(c)
	}
}

// History returns the remembered broadcasts in chronological order.
func (s *Switchboard) History() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.getAll()
}
