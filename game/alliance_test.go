package game

import (
	"testing"

	"github.com/bsoera/econ/structs"
	"github.com/google/go-cmp/cmp"
)

func (e *testEnv) alliance(id string) *structs.Alliance {
	e.t.Helper()
	a := &structs.Alliance{}
	if err := e.store.PeekInto(e.ctx, structs.AlliancePath(id), a); err != nil {
		e.t.Fatal(err)
	}
	return a
}

func TestAllianceCreate(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("boss", func(p *structs.Player) { p.Points = 1500 })
		e.seedPlayer("rich", func(p *structs.Player) { p.Points = 1000 })
		e.seedPlayer("poor", func(p *structs.Player) { p.Points = 10 })

		e.run("boss", "/alliance create Knights")
		e.expect("boss", "['allianceCreateSuccess']")
		p := e.player("boss")
		if p.Points != 500 {
			t.Errorf("points = %d, want 500", p.Points)
		}
		id := p.Alliance()
		if id == "" {
			t.Fatal("creator should be in the new alliance")
		}
		a := e.alliance(id)
		if a.Name != "Knights" {
			t.Errorf("name = %q", a.Name)
		}
		if rank, _ := a.Members.Get("boss"); rank != structs.RankOwner {
			t.Errorf("creator rank = %q, want owner", rank)
		}
		if diff := cmp.Diff([]any{"knights"}, e.peek(structs.AllianceNamesKey)); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}

		for _, tc := range []struct {
			account string
			line    string
			want    string
		}{
			{"boss", "/alliance create Other", "['alreadyInAlliance']"},
			{"poor", "/alliance create Paupers", "['insufficientFunds', '990']"},
			{"rich", "/alliance create KNIGHTS", "['nameTaken']"},
			{"rich", "/alliance create bad-name", "['isNotAlnum']"},
			{"rich", "/alliance create two words", "['isNotAlnum']"},
			{"rich", "/alliance create Abcdefghijklmnopqrstu", "['tooLong', '20']"},
			{"rich", "/alliance", "['allianceUsage']"},
			{"rich", "/alliance conquer", "['allianceUsage']"},
			{"rich", "/alliance invite", "['notInAlliance']"},
		} {
			e.run(tc.account, tc.line)
			e.expect(tc.account, tc.want)
		}
		if got := e.player("rich").Points; got != 1000 {
			t.Errorf("refused creations should cost nothing, points = %d", got)
		}
	})
}

func TestAllianceMembership(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("boss", func(p *structs.Player) { p.Points = 1000 })
		for _, account := range []string{"a", "b", "c"} {
			e.seedPlayer(account, nil)
		}
		e.run("boss", "/alliance create Knights")
		e.expect("boss", "['allianceCreateSuccess']")
		id := e.player("boss").Alliance()

		e.run("boss", "/alliance invite 2")
		ref := e.alliance(id).Invite()
		if ref == "" {
			t.Fatal("invite should be referenced by the alliance")
		}
		e.expect("boss", "['allianceInviteSuccess', '"+ref+"', '2']")
		e.run("boss", "/alliance invite 5")
		e.expect("boss", "['allianceInviteSuccess', '"+ref+"', '2']")

		e.run("a", "/alliance join "+ref)
		e.expect("a", "['allianceJoinSuccess', 'Knights']")
		e.run("b", "/alliance join "+ref)
		e.expect("b", "['allianceJoinSuccess', 'Knights']")
		if e.exists(structs.InvitePath(ref)) {
			t.Error("exhausted invite should be removed")
		}
		if got := e.alliance(id).Invite(); got != "" {
			t.Errorf("alliance still references invite %q", got)
		}
		for _, bad := range []string{ref, "../gstats/boss", "..", `x\y`} {
			e.run("c", "/alliance join "+bad)
			e.expect("c", "['invalidAllianceInvite']")
		}
		e.run("a", "/alliance join "+ref)
		e.expect("a", "['alreadyInAlliance']")

		e.run("boss", "/alliance plrlist")
		e.expect("boss", "['alliancePlayerList', '0 - owner - boss\n1 - member - a\n2 - member - b']")

		before, owner := e.alliance(id), e.player("boss")
		e.run("boss", "/alliance leave")
		e.expect("boss", "['allianceOwnerCantLeave']")
		if diff := cmp.Diff(before, e.alliance(id), cmp.AllowUnexported(structs.Ordered[structs.Rank]{})); diff != "" {
			t.Errorf("refused leave changed the alliance (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(owner, e.player("boss")); diff != "" {
			t.Errorf("refused leave changed the owner (-want +got):\n%s", diff)
		}

		for _, tc := range []struct {
			account string
			line    string
			want    string
		}{
			{"a", "/alliance invite", "['insufficientAllianceRank']"},
			{"a", "/alliance promote 0", "['insufficientAllianceRank']"},
			{"boss", "/alliance promote 1", "['alliancePromoteSuccess']"},
			{"a", "/alliance kick 2", "['insufficientAllianceRank']"},
			{"a", "/alliance promote a", "['cantPromoteHigherThanSelf']"},
			{"a", "/alliance destroy", "['insufficientAllianceRank']"},
			{"boss", "/alliance demote 0", "['allianceOwnerCantBeDemoted']"},
			{"boss", "/alliance demote b", "['alreadyLowestRank']"},
			{"boss", "/alliance kick 2", "['allianceKickSuccessful']"},
			{"b", "/alliance leave", "['notInAlliance']"},
			{"a", "/alliance leave", "['allianceLeaveSuccessful']"},
		} {
			e.run(tc.account, tc.line)
			e.expect(tc.account, tc.want)
		}
		if got := e.player("b").Alliance(); got != "" {
			t.Errorf("kicked player still in alliance %q", got)
		}
		if diff := cmp.Diff([]string{"boss"}, e.alliance(id).Members.Keys()); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAlliancePublicAndDestroy(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("boss", func(p *structs.Player) { p.Points = 1000 })
		e.seedPlayer("c", nil)
		e.run("boss", "/alliance create Knights")
		e.expect("boss", "['allianceCreateSuccess']")
		id := e.player("boss").Alliance()

		e.run("boss", "/alliance private")
		e.expect("boss", "['allianceAlreadyPrivate']")
		e.run("boss", "/alliance public")
		e.expect("boss", "['alliancePublicSuccess']")
		if !e.exists(structs.InvitePath("knights")) {
			t.Fatal("public alliances are joined by name")
		}
		e.run("boss", "/alliance invite")
		e.expect("boss", "['publicAllianceCantGenerateInvite']")

		e.run("c", "/alliance join Knights")
		e.expect("c", "['allianceJoinSuccess', 'Knights']")
		if !e.exists(structs.InvitePath("knights")) {
			t.Error("public invites have unlimited uses")
		}

		e.run("boss", "/alliance destroy")
		e.expect("boss", "['allianceDeletionSuccess']")
		for _, key := range []string{structs.AlliancePath(id), structs.InvitePath("knights")} {
			if e.exists(key) {
				t.Errorf("%s should be removed", key)
			}
		}
		if names, _ := e.peek(structs.AllianceNamesKey).([]any); len(names) != 0 {
			t.Errorf("names = %v, want none", names)
		}
		for _, account := range []string{"boss", "c"} {
			if got := e.player(account).Alliance(); got != "" {
				t.Errorf("%s still in alliance %q", account, got)
			}
		}
	})
}

func TestAllianceDestroyRemovesInvite(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("boss", func(p *structs.Player) { p.Points = 1000 })
		e.run("boss", "/alliance create Knights")
		e.expect("boss", "['allianceCreateSuccess']")
		id := e.player("boss").Alliance()
		e.run("boss", "/alliance invite 3")
		ref := e.alliance(id).Invite()
		e.expect("boss", "['allianceInviteSuccess', '"+ref+"', '3']")
		if !e.exists(structs.InvitePath(ref)) {
			t.Fatalf("invite %q was not written", ref)
		}

		e.run("boss", "/alliance destroy")
		e.expect("boss", "['allianceDeletionSuccess']")
		for _, key := range []string{structs.AlliancePath(id), structs.InvitePath(ref)} {
			if e.exists(key) {
				t.Errorf("%s should be removed", key)
			}
		}
	})
}
