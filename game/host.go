package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// Color is an RGB triple with channels in [0, 1].
type Color [3]float64

var (
	ColorSuccess = Color{0, 1, 0}
	ColorWarning = Color{1, 1, 0}
	ColorError   = Color{1, 0, 0}
	ColorNormal  = Color{1, 1, 1}
)

// RGBA is a tag color.
type RGBA [4]float64

// Target is one in-game player: the client controlling it and the account it belongs to.
type Target struct {
	Client  string
	Account string
	Name    string
}

// Sink delivers rendered text to one client.
type Sink interface {
	Deliver(ctx context.Context, client string, text string, color Color) error
}

// TargetResolver finds the players a scoped event applies to.
// ScopeActivity resolves to no players.
type TargetResolver interface {
	ResolveTargets(ctx context.Context, scope Scope, client string) ([]Target, error)
}

// EventApplier performs the non-economic effects of events on the host.
type EventApplier interface {
	ApplyEvent(ctx context.Context, ev Event, targets []Target) error
	Emote(ctx context.Context, client string, emote string) error
	// Refresh asks the host to redraw the decorations of the players of client.
	Refresh(ctx context.Context, client string) error
}

type Scope string

const (
	ScopeEveryone Scope = "everyone"
	ScopeRandom   Scope = "random"
	ScopeSelf     Scope = "self"
	ScopeOthers   Scope = "others"
	// ScopeSEveryone is one player per distinct account.
	ScopeSEveryone Scope = "severyone"
	// ScopeSSelf is the first player of the acting client.
	ScopeSSelf    Scope = "sself"
	ScopeActivity Scope = "activity"
)

var scopes = []Scope{ScopeEveryone, ScopeRandom, ScopeSelf, ScopeOthers, ScopeSEveryone, ScopeSSelf, ScopeActivity}

const (
	KindReward  = "reward"
	KindPowerup = "powerup"
)

var eventKinds = []string{KindPowerup, "die", "portal_trap", "explode", "knockout", "dev", "disable", KindReward}

// Event is a wheel or powerup effect, "<scope> <kind> [args...]".
type Event struct {
	Scope Scope
	Kind  string
	Args  []string
}

func ParseEvent(s string) (Event, error) {
	parts := strings.Split(s, " ")
	if len(parts) < 2 {
		return Event{}, fmt.Errorf("invalid event %q", s)
	}
	ev := Event{Scope: Scope(parts[0]), Kind: parts[1], Args: parts[2:]}
	if !slices.Contains(scopes, ev.Scope) {
		return Event{}, fmt.Errorf("invalid event target %q", parts[0])
	}
	if !slices.Contains(eventKinds, ev.Kind) {
		return Event{}, fmt.Errorf("invalid event type %q", parts[1])
	}
	return ev, nil
}

func (e Event) String() string {
	return strings.Join(append([]string{string(e.Scope), e.Kind}, e.Args...), " ")
}

// ResolveFromRoster implements scope resolution over the list of players currently in game.
func ResolveFromRoster(roster []Target, scope Scope, client string, rnd *rand.Rand) ([]Target, error) {
	own := []Target{}
	others := []Target{}
	for _, t := range roster {
		if t.Client == client {
			own = append(own, t)
		} else {
			others = append(others, t)
		}
	}
	switch scope {
	case ScopeEveryone:
		return slices.Clone(roster), nil
	case ScopeRandom:
		if len(roster) == 0 {
			return nil, nil
		}
		return []Target{roster[rnd.IntN(len(roster))]}, nil
	case ScopeSelf:
		return own, nil
	case ScopeOthers:
		return others, nil
	case ScopeSEveryone:
		seen := map[string]bool{}
		result := []Target{}
		for _, t := range roster {
			if !seen[t.Account] {
				seen[t.Account] = true
				result = append(result, t)
			}
		}
		return result, nil
	case ScopeSSelf:
		if len(own) == 0 {
			return nil, nil
		}
		return own[:1], nil
	case ScopeActivity:
		return nil, nil
	}
	return nil, fmt.Errorf("invalid event target %q", scope)
}
