package game

import (
	"math/rand/v2"
	"testing"

	"github.com/bsoera/econ/structs"
	"github.com/google/go-cmp/cmp"
)

func TestWheelPool(t *testing.T) {
	good := []string{"g"}
	bad := []string{"b"}
	for _, tc := range []struct {
		luck int
		want []string
	}{
		{0, []string{"g", "b", "b"}},
		{1, []string{"g", "b"}},
		{2, []string{"g", "g", "b"}},
		{3, []string{"g"}},
		{7, []string{"g"}},
	} {
		if diff := cmp.Diff(tc.want, wheelPool(tc.luck, good, bad)); diff != "" {
			t.Errorf("luck %d mismatch (-want +got):\n%s", tc.luck, diff)
		}
	}
}

func TestWheelUpgrades(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{structs.WheelItem}
			p.Points = 9
			p.Chaos = 3
		})
		e.seedPlayer("pk2", nil)

		for _, tc := range []struct {
			account string
			line    string
			want    string
		}{
			{"pk2", "/wheel spin", "['wheelNotOwned']"},
			{"pk1", "/wheel", "['wheelUsage']"},
			{"pk1", "/wheel turbo", "['wheelUsage']"},
			{"pk1", "/wheel chaos", "['maxWheelChaos']"},
			{"pk1", "/wheel luck", "['wheelLuckIncrease', '2']"},
			{"pk1", "/wheel charge", "['insufficientFunds', '1']"},
			{"pk1", "/wheel spin", "['needsInGamePlr']"},
		} {
			e.run(tc.account, tc.line)
			e.expect(tc.account, tc.want)
		}
		p := e.player("pk1")
		if p.Luck != 1 || p.Charge != 1 || p.Points != 4 {
			t.Errorf("luck %d, charge %d, points %d", p.Luck, p.Charge, p.Points)
		}
	})
}

func TestWheelSpin(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seed(structs.InfoKey, `{"wgc1": ["self reward 7", "others reward 3", "activity dev lights"], "wbc1": ["self die"]}`)
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{structs.WheelItem}
			p.Luck = 3
			p.Chaos = 1
			p.Charge = 3
		})
		e.host.join("pk1")

		e.run("pk1", "/wheel spin")
		e.expect("pk1", "['somethingHappened']", "['somethingHappened']")
		p := e.player("pk1")
		if p.Points != 7 {
			t.Errorf("points = %d, want 7", p.Points)
		}
		if p.Luck != 0 || p.Chaos != 0 || p.Charge != 1 || p.HasItem(structs.WheelItem) {
			t.Errorf("wheel was not reset: %+v", p)
		}
		if len(e.host.events) != 1 || e.host.events[0].ev.String() != "activity dev lights" {
			t.Errorf("events = %+v", e.host.events)
		}
	})
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("severyone reward hat@head␟60")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Event{Scope: ScopeSEveryone, Kind: KindReward, Args: []string{"hat@head␟60"}}, ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	for _, s := range []string{"self", "nowhere die", "self dance"} {
		if _, err := ParseEvent(s); err == nil {
			t.Errorf("ParseEvent(%q) should fail", s)
		}
	}
}

func TestResolveFromRoster(t *testing.T) {
	roster := []Target{
		{Client: "c1", Account: "a"},
		{Client: "c1", Account: "a"},
		{Client: "c2", Account: "a"},
		{Client: "c3", Account: "b"},
	}
	rnd := rand.New(rand.NewPCG(1, 2))
	for _, tc := range []struct {
		scope Scope
		want  int
	}{
		{ScopeEveryone, 4},
		{ScopeRandom, 1},
		{ScopeSelf, 2},
		{ScopeOthers, 2},
		{ScopeSEveryone, 2},
		{ScopeSSelf, 1},
		{ScopeActivity, 0},
	} {
		got, err := ResolveFromRoster(roster, tc.scope, "c1", rnd)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tc.want {
			t.Errorf("%s resolved to %d players, want %d", tc.scope, len(got), tc.want)
		}
	}
	if _, err := ResolveFromRoster(roster, "sideways", "c1", rnd); err == nil {
		t.Error("unknown scopes should fail")
	}
}
