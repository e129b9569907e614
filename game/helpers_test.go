package game

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bsoera/econ/storage"
	"github.com/bsoera/econ/storage/ledger"
	"github.com/bsoera/econ/structs"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var testNow = time.Unix(1_700_000_000, 0)

type delivery struct {
	client string
	text   string
	color  Color
}

// fakeHost records everything the dispatcher asks of its host.
type fakeHost struct {
	mu         sync.Mutex
	roster     []Target
	rnd        *rand.Rand
	deliveries []delivery
	events     []pendingEvent
	emotes     []pendingEmote
	refreshed  []string
	// busy lists host calls made while the dispatcher lock was held.
	busy       []string
	d          *Dispatcher
}

func (h *fakeHost) checkUnlocked(call string) {
	if h.d == nil {
		return
	}
	if h.d.mu.TryLock() {
		h.d.mu.Unlock()
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.busy = append(h.busy, call)
}

func (h *fakeHost) Deliver(ctx context.Context, client string, text string, color Color) error {
	h.checkUnlocked("deliver " + client)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliveries = append(h.deliveries, delivery{client: client, text: text, color: color})
	return nil
}

func (h *fakeHost) ResolveTargets(ctx context.Context, scope Scope, client string) ([]Target, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ResolveFromRoster(h.roster, scope, client, h.rnd)
}

func (h *fakeHost) ApplyEvent(ctx context.Context, ev Event, targets []Target) error {
	h.checkUnlocked("event " + ev.String())
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, pendingEvent{ev: ev, targets: targets})
	return nil
}

func (h *fakeHost) Emote(ctx context.Context, client string, emote string) error {
	h.checkUnlocked("emote " + client)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emotes = append(h.emotes, pendingEmote{client: client, emote: emote})
	return nil
}

func (h *fakeHost) Refresh(ctx context.Context, client string) error {
	h.checkUnlocked("refresh " + client)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshed = append(h.refreshed, client)
	return nil
}

// join puts a player of account in game, controlled by client "c-<account>".
func (h *fakeHost) join(account string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roster = append(h.roster, Target{Client: clientOf(account), Account: account, Name: account})
}

// texts returns and forgets what was delivered to client.
func (h *fakeHost) texts(client string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := []string{}
	kept := []delivery{}
	for _, d := range h.deliveries {
		if d.client == client {
			result = append(result, d.text)
		} else {
			kept = append(kept, d)
		}
	}
	h.deliveries = kept
	return result
}

func clientOf(account string) string {
	return "c-" + account
}

type testEnv struct {
	t      *testing.T
	ctx    context.Context
	d      *Dispatcher
	host   *fakeHost
	store  *storage.Store
	ledger *ledger.Ledger
	config *structs.ServerConfig
}

func withDispatcher(t *testing.T, f func(env *testEnv)) {
	t.Helper()
	dir := t.TempDir()
	store := storage.New(storage.Resolver{Root: filepath.Join(dir, "data"), SuperDir: "test"})
	store.SetClock(func() time.Time { return testNow })
	l, err := ledger.Open(filepath.Join(dir, "ledger.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	audit := storage.NewAuditLogger(filepath.Join(dir, "audit.log"), 1)
	defer audit.Close()
	host := &fakeHost{rnd: rand.New(rand.NewPCG(1, 2))}
	config := structs.NewServerConfig(true)
	d := New(store, Options{
		Sink:    host,
		Targets: host,
		Events:  host,
		Ledger:  l,
		Audit:   audit,
		Config:  config,
		Now:     func() time.Time { return testNow },
		Rand:    rand.New(rand.NewPCG(3, 4)),
	})
	host.d = d
	f(&testEnv{
		t:      t,
		ctx:    context.Background(),
		d:      d,
		host:   host,
		store:  store,
		ledger: l,
		config: config,
	})
}

// seed writes a raw JSON document.
func (e *testEnv) seed(key string, content string) {
	e.t.Helper()
	path := e.store.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.t.Fatal(err)
	}
}

// seedPlayer stores an English speaking player modified by f.
func (e *testEnv) seedPlayer(account string, f func(p *structs.Player)) {
	e.t.Helper()
	p := structs.NewPlayer()
	english := "English"
	p.Lang = &english
	if f != nil {
		f(p)
	}
	if err := e.store.Write(e.ctx, structs.PlayerPath(account), p); err != nil {
		e.t.Fatal(err)
	}
}

func (e *testEnv) player(account string) *structs.Player {
	e.t.Helper()
	p := structs.NewPlayer()
	if err := e.store.PeekInto(e.ctx, structs.PlayerPath(account), p); err != nil {
		e.t.Fatal(err)
	}
	p.Normalize()
	return p
}

func (e *testEnv) run(account string, line string) {
	e.t.Helper()
	handled, err := e.d.Handle(e.ctx, Request{Client: clientOf(account), Account: account, Name: account, Line: line})
	if err != nil {
		e.t.Fatalf("%q by %q: %v", line, account, err)
	}
	if !handled {
		e.t.Fatalf("%q was not handled", line)
	}
}

// expect checks what account's client was told since the last check.
func (e *testEnv) expect(account string, want ...string) {
	e.t.Helper()
	if diff := cmp.Diff(want, e.host.texts(clientOf(account)), cmpopts.EquateEmpty()); diff != "" {
		e.t.Errorf("notices to %s mismatch (-want +got):\n%s", account, diff)
	}
}

func (e *testEnv) peek(key string, keys ...string) any {
	e.t.Helper()
	v, err := e.store.Peek(e.ctx, key, keys...)
	if err != nil {
		e.t.Fatal(err)
	}
	return v
}

func (e *testEnv) exists(key string) bool {
	e.t.Helper()
	found, err := e.store.Exists(e.ctx, key)
	if err != nil {
		e.t.Fatal(err)
	}
	return found
}
