package storage

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/bsoera/econ"
	"gopkg.in/natefinch/lumberjack.v2"

	goccy "github.com/goccy/go-json"
)

// AuditLogger writes committed economy changes to a rotated log file as JSON lines.
type AuditLogger struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *goccy.Encoder
}

// AuditData is the interface for typed audit event data.
type AuditData interface {
	auditData()
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Time      string    `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	Event     string    `json:"event"`
	Data      AuditData `json:"data"`
}

// AuditCommand is logged when a chat command commits.
type AuditCommand struct {
	Account string `json:"account"`
	Client  string `json:"client"`
	Line    string `json:"line"`
	Writes  int    `json:"writes"`
	Removes int    `json:"removes"`
}

func (AuditCommand) auditData() {}

// AuditRejection is logged when a chat command is refused.
type AuditRejection struct {
	Account string `json:"account"`
	Line    string `json:"line"`
	Message string `json:"message"`
}

func (AuditRejection) auditData() {}

// AuditFailure is logged when a chat command fails structurally and nothing is persisted.
type AuditFailure struct {
	Account  string `json:"account"`
	Line     string `json:"line"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

func (AuditFailure) auditData() {}

// AuditAward is logged when session end awards are credited.
type AuditAward struct {
	Account string `json:"account"`
	Points  int    `json:"points"`
	Reason  string `json:"reason"`
}

func (AuditAward) auditData() {}

// AuditRestore is logged when an admin restores a backup.
type AuditRestore struct {
	Files int `json:"files"`
}

func (AuditRestore) auditData() {}

// NewAuditLogger creates an audit logger writing to path, rotated at maxSizeMB.
func NewAuditLogger(path string, maxSizeMB int) *AuditLogger {
	return NewAuditWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 10,
		Compress:   true,
	})
}

// NewAuditWriter creates an audit logger writing to out.
func NewAuditWriter(out io.WriteCloser) *AuditLogger {
	return &AuditLogger{
		out: out,
		enc: goccy.NewEncoder(out),
	}
}

// Log writes a structured audit entry. Write failures are logged and dropped.
func (a *AuditLogger) Log(ctx context.Context, event string, data AuditData) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	sessionID, _ := econ.SessionID(ctx)
	if err := a.enc.Encode(AuditEntry{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	}); err != nil {
		log.Printf("audit log write failed: %v", err)
	}
}

func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Close()
}
