package game

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/storage/ledger"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type notice struct {
	client   string
	id       string
	raw      string
	color    Color
	language string
	args     []string
}

type pendingEvent struct {
	ev      Event
	targets []Target
}

type pendingEmote struct {
	client string
	emote  string
}

// tx stages every document a command touches. Nothing reaches the store until commit,
// so a command that fails half way leaves no trace.
type tx struct {
	d       *Dispatcher
	ctx     context.Context
	docs    map[string]any
	found   map[string]bool
	order   []string
	dirty   map[string]bool
	removed map[string]bool
	notices []notice
	events  []pendingEvent
	entries []ledger.Entry
	emotes  []pendingEmote
	refresh []string
}

func (d *Dispatcher) begin(ctx context.Context) *tx {
	return &tx{
		d:       d,
		ctx:     ctx,
		docs:    map[string]any{},
		found:   map[string]bool{},
		dirty:   map[string]bool{},
		removed: map[string]bool{},
	}
}

// load decodes key into dst unless it is already staged, in which case the staged value is returned.
func (t *tx) load(key string, dst any, raw bool) (any, bool, error) {
	if doc, found := t.docs[key]; found {
		return doc, t.found[key], nil
	}
	var err error
	if raw {
		err = t.d.store.PeekInto(t.ctx, key, dst)
	} else {
		err = t.d.store.LoadInto(t.ctx, key, dst)
	}
	found := true
	if errors.Is(err, os.ErrNotExist) {
		found = false
	} else if err != nil {
		return nil, false, err
	}
	t.docs[key] = dst
	t.found[key] = found
	return dst, found, nil
}

func (t *tx) player(account string) (*structs.Player, error) {
	doc, _, err := t.load(structs.PlayerPath(account), structs.NewPlayer(), false)
	if err != nil {
		return nil, err
	}
	p := doc.(*structs.Player)
	p.Normalize()
	return p, nil
}

// players loads several player documents concurrently.
func (t *tx) players(accounts []string) ([]*structs.Player, error) {
	loaded := make([]*structs.Player, len(accounts))
	g, ctx := errgroup.WithContext(t.ctx)
	for i, account := range accounts {
		key := structs.PlayerPath(account)
		if _, found := t.docs[key]; found {
			continue
		}
		g.Go(func() error {
			p := structs.NewPlayer()
			if err := t.d.store.LoadInto(ctx, key, p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			loaded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result := make([]*structs.Player, len(accounts))
	for i, account := range accounts {
		if loaded[i] != nil {
			key := structs.PlayerPath(account)
			t.docs[key] = loaded[i]
			t.found[key] = true
		}
		p, err := t.player(account)
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// alliance returns nil if the alliance does not exist.
func (t *tx) alliance(id string) (*structs.Alliance, error) {
	doc, found, err := t.load(structs.AlliancePath(id), &structs.Alliance{}, false)
	if err != nil || !found || t.removed[structs.AlliancePath(id)] {
		return nil, err
	}
	return doc.(*structs.Alliance), nil
}

// invite returns nil if the invite does not exist.
func (t *tx) invite(id string) (*structs.Invite, error) {
	doc, found, err := t.load(structs.InvitePath(id), &structs.Invite{}, false)
	if err != nil || !found || t.removed[structs.InvitePath(id)] {
		return nil, err
	}
	return doc.(*structs.Invite), nil
}

func (t *tx) allianceNames() (*[]string, error) {
	names := []string{}
	doc, _, err := t.load(structs.AllianceNamesKey, &names, false)
	if err != nil {
		return nil, err
	}
	return doc.(*[]string), nil
}

// info is read raw: code tables are edited in place and written back whole.
func (t *tx) info() (*structs.Ordered[any], error) {
	doc, _, err := t.load(structs.InfoKey, structs.NewOrdered[any](), true)
	if err != nil {
		return nil, err
	}
	return doc.(*structs.Ordered[any]), nil
}

func (t *tx) shop() (*structs.Shop, error) {
	doc, _, err := t.load(structs.ShopKey, structs.NewOrdered[*structs.Ordered[structs.ShopItem]](), true)
	if err != nil {
		return nil, err
	}
	return doc.(*structs.Shop), nil
}

func (t *tx) tops() (*structs.Tops, error) {
	doc, _, err := t.load(structs.TopsKey, structs.NewTops(), false)
	if err != nil {
		return nil, err
	}
	return doc.(*structs.Tops), nil
}

func (t *tx) leagues() (*structs.Leagues, error) {
	doc, _, err := t.load(structs.LeaguesKey, structs.NewLeagues(), false)
	if err != nil {
		return nil, err
	}
	l := doc.(*structs.Leagues)
	l.Normalize()
	return l, nil
}

// exists consults staged state before the store.
func (t *tx) exists(key string) (bool, error) {
	if t.removed[key] {
		return false, nil
	}
	if t.dirty[key] {
		return true, nil
	}
	if _, found := t.docs[key]; found {
		return t.found[key], nil
	}
	return t.d.store.Exists(t.ctx, key)
}

func (t *tx) put(key string, doc any) {
	t.docs[key] = doc
	t.found[key] = true
	delete(t.removed, key)
	if !t.dirty[key] {
		t.dirty[key] = true
		t.order = append(t.order, key)
	}
}

func (t *tx) remove(key string) {
	t.removed[key] = true
	t.found[key] = false
	if !t.dirty[key] {
		t.dirty[key] = true
		t.order = append(t.order, key)
	}
}

func (t *tx) putPlayer(account string, p *structs.Player) {
	t.put(structs.PlayerPath(account), p)
}

func (t *tx) putAlliance(id string, a *structs.Alliance) {
	t.put(structs.AlliancePath(id), a)
}

// credit moves points and records the movement for the ledger.
func (t *tx) credit(account string, p *structs.Player, delta int, reason string) {
	p.Points += delta
	if p.Points < 0 && !t.d.config.GetNegativeScores() {
		delta -= p.Points
		p.Points = 0
	}
	if account == "" {
		account = structs.AnonAccount
	}
	t.entries = append(t.entries, ledger.Entry{
		At:      t.d.now().UnixNano(),
		Account: account,
		Delta:   delta,
		Balance: p.Points,
		Reason:  reason,
	})
	t.putPlayer(account, p)
}

func (t *tx) notify(client string, language string, id string, color Color, args ...string) {
	t.notices = append(t.notices, notice{client: client, id: id, color: color, language: language, args: args})
}

func (t *tx) say(client string, text string, color Color) {
	t.notices = append(t.notices, notice{client: client, raw: text, color: color})
}

func (t *tx) apply(ev Event, targets []Target) {
	t.events = append(t.events, pendingEvent{ev: ev, targets: slices.Clone(targets)})
}

func (t *tx) writes() (writes int, removes int) {
	for _, key := range t.order {
		if t.removed[key] {
			removes++
		} else {
			writes++
		}
	}
	return writes, removes
}

// commit persists staged documents in staging order.
func (t *tx) commit() error {
	for _, key := range t.order {
		if t.removed[key] {
			if err := t.d.store.Remove(t.ctx, key); err != nil {
				return err
			}
			continue
		}
		if err := t.d.store.Write(t.ctx, key, t.docs[key]); err != nil {
			return err
		}
	}
	if t.d.ledger != nil && len(t.entries) > 0 {
		if err := t.d.ledger.Record(t.ctx, t.entries...); err != nil {
			t.d.logf("recording %d ledger entries: %v\n%s", len(t.entries), err, econ.StackTrace(err))
		}
	}
	return nil
}

// discard drops the output of a command that will not commit.
func (t *tx) discard() {
	t.notices, t.events, t.emotes, t.refresh = nil, nil, nil, nil
}

// flush delivers buffered notices and applies buffered host effects.
// It runs after commit with the dispatcher unlocked, since sinks and hosts may block.
func (t *tx) flush() {
	for _, n := range t.notices {
		t.d.deliver(t.ctx, n)
	}
	if t.d.events == nil {
		return
	}
	for _, pe := range t.events {
		if err := t.d.events.ApplyEvent(t.ctx, pe.ev, pe.targets); err != nil {
			t.d.logf("applying %q: %v", pe.ev.String(), err)
		}
	}
	for _, pe := range t.emotes {
		if err := t.d.events.Emote(t.ctx, pe.client, pe.emote); err != nil {
			t.d.logf("playing emote %q for %q: %v", pe.emote, pe.client, err)
		}
	}
	for _, client := range t.refresh {
		if err := t.d.events.Refresh(t.ctx, client); err != nil {
			t.d.logf("refreshing %q: %v", client, err)
		}
	}
}

func missingArgument(i int) error {
	return econ.WithStack(fmt.Errorf("missing argument %d", i))
}
