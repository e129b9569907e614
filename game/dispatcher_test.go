package game

import (
	"os"
	"slices"
	"testing"
	"time"

	"github.com/bsoera/econ/structs"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
)

func TestHandleNonCommands(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("pk1", nil)
		handled, err := e.d.Handle(e.ctx, Request{Client: clientOf("pk1"), Account: "pk1", Line: "hello /code"})
		if err != nil || handled {
			t.Errorf("chat line: handled = %v, err = %v", handled, err)
		}
		e.run("pk1", "/nope")
		e.expect("pk1", "['invalidCommand']")
		e.run("pk1", "/")
		e.expect("pk1", "['helpNormal']")
		if !slices.Contains(e.host.refreshed, clientOf("pk1")) {
			t.Error("a committed command should refresh the client")
		}
	})
}

func TestHostCallsRunUnlocked(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seed(structs.ShopKey, `{"powerup": {"speed": {"price": 5}}}`)
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Points = 5
			p.Items = []string{"wave@emote"}
		})
		e.host.join("pk1")
		for _, line := range []string{"/help", "/nope", "/powerup speed", "/emote wave", "/code purchase"} {
			e.run("pk1", line)
		}
		if err := e.d.Award(e.ctx, []Placement{{Client: clientOf("pk1"), Account: "pk1", Points: 2}}); err != nil {
			t.Fatal(err)
		}
		if len(e.host.deliveries) == 0 || len(e.host.events) == 0 || len(e.host.emotes) == 0 || len(e.host.refreshed) == 0 {
			t.Fatalf("host saw too little: %+v", e.host)
		}
		if len(e.host.busy) != 0 {
			t.Errorf("host called with the dispatcher locked: %v", e.host.busy)
		}
	})
}

func TestPromoCode(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seed(structs.InfoKey, `{"pcodes": {"WELCOME": [50, "hat@head", "vip@other␟60"], "EMPTY": []}}`)
		e.seedPlayer("pk1", nil)

		e.run("pk1", "/code promo WELCOME")
		e.expect("pk1",
			"['successfulCodeRegister', '50 SPoints']",
			"['successfulCodeRegister', 'hat@head']",
			"['successfulCodeRegister', 'vip@other#1700000060']",
		)
		p := e.player("pk1")
		if p.Points != 50 {
			t.Errorf("points = %d, want 50", p.Points)
		}
		if diff := cmp.Diff([]string{"hat@head", "vip@other␟1700000060"}, p.Items); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"WELCOME"}, p.Codes); diff != "" {
			t.Errorf("codes mismatch (-want +got):\n%s", diff)
		}

		e.run("pk1", "/code promo WELCOME")
		e.expect("pk1", "['usedCode']")
		e.run("pk1", "/code promo NOPE")
		e.expect("pk1", "['usedCode']")
		e.run("pk1", "/code promo EMPTY")
		e.expect("pk1", "['usedCode']")
		e.run("pk1", "/code")
		e.expect("pk1", "['codeUsage']")
		if got := e.player("pk1").Points; got != 50 {
			t.Errorf("points = %d after reusing the code, want 50", got)
		}

		history, err := e.ledger.History(e.ctx, "pk1", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 1 || history[0].Delta != 50 || history[0].Reason != "promo WELCOME" {
			t.Errorf("ledger history = %+v", history)
		}
	})
}

func TestPurchaseCode(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seed(structs.InfoKey, `{"purchases": {"P1": [100, "hat@head"]}, "other": 1}`)
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{"hat@head"}
		})
		e.seedPlayer("pk2", nil)

		e.run("pk1", "/code purchase P1")
		e.expect("pk1", "['successfulCodeRegister', '100 SPoints']", "['alreadyOwned', 'hat@head']")
		if got := e.player("pk1").Points; got != 100 {
			t.Errorf("points = %d, want 100", got)
		}
		if diff := cmp.Diff([]any{"hat@head"}, e.peek(structs.InfoKey, "purchases", "P1")); diff != "" {
			t.Errorf("remaining rewards mismatch (-want +got):\n%s", diff)
		}
		if got := e.peek(structs.InfoKey, "other"); got != int64(1) {
			t.Errorf("unrelated ginfo entry = %#v", got)
		}

		e.run("pk2", "/code purchase P1")
		e.expect("pk2", "['successfulCodeRegister', 'hat@head']")
		if _, err := e.store.Peek(e.ctx, structs.InfoKey, "purchases", "P1"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("used up purchase should be deleted, got %v", err)
		}
		e.run("pk2", "/code purchase P1")
		e.expect("pk2", "['usedCode']")
	})
}

func TestFailedCommandPersistsNothing(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.run("pk3", "/code purchase")
		e.expect("pk3", "['selectLang']", "['genericError', 'code']")
		if e.exists(structs.PlayerPath("pk3")) {
			t.Error("a failed command should not create the player")
		}
		if slices.Contains(e.host.refreshed, clientOf("pk3")) {
			t.Error("a failed command should not refresh the client")
		}
	})
}

func TestShop(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seed(structs.ShopKey, `{"head": {"hat": {"price": 30}, "crown": {"price": 500}}, "other": {"wheel": {"price": 10}}, "empty": {}}`)
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Points = 40
		})

		e.run("pk1", "/shop")
		e.expect("pk1", "['shopMain', 'head\nother\nempty\n']", "['amountOfSPoints', '40']")
		e.run("pk1", "/shop head")
		e.expect("pk1", "hat: 30 SPoints\ncrown: 500 SPoints")
		e.run("pk1", "/shop nope")
		e.expect("pk1", "['invalidShopCategory']")
		e.run("pk1", "/shop empty")
		e.expect("pk1", "['invalidShopCategory']")
		e.run("pk1", "/shop head tiara")
		e.expect("pk1", "['invalidShopItem', 'head']")
		e.run("pk1", "/shop head crown")
		e.expect("pk1", "['insufficientFunds', '460']")
		if got := e.player("pk1").Points; got != 40 {
			t.Errorf("points = %d after a refused purchase, want 40", got)
		}

		e.run("pk1", "/shop head hat")
		e.expect("pk1", "['successfulPurchase', 'hat@head']", "['howToUse', '/equip head hat']")
		e.run("pk1", "/shop head hat")
		e.expect("pk1", "['alreadyOwned', 'hat@head']")
		e.run("pk1", "/shop other wheel")
		e.expect("pk1", "['successfulPurchase', 'wheel@other']", "['wheelUsage']")
		e.run("pk1", "/shop head hat extra")
		e.expect("pk1", "['shopUsage']")
		e.run("pk1", "/shop")
		e.expect("pk1", "['shopMain', 'head\nother\nempty\n']", "['0SPoints']")

		p := e.player("pk1")
		if p.Points != 0 {
			t.Errorf("points = %d, want 0", p.Points)
		}
		if diff := cmp.Diff([]string{"hat@head", "wheel@other"}, p.Items); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestEquip(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{"hat@head", "crown@head", "wheel@other"}
		})

		e.run("pk1", "/equip head hat")
		e.expect("pk1", "['equipped', 'hat@head']")
		e.run("pk1", "/equip head crown")
		e.expect("pk1", "['unequipped', 'hat@head']", "['equipped', 'crown@head']")
		p := e.player("pk1")
		if diff := cmp.Diff([]string{"crown@head"}, p.Equipped); diff != "" {
			t.Errorf("equipped mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"wheel@other", "hat@head"}, p.Items); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}

		e.run("pk1", "/equip head crown")
		e.expect("pk1", "['unequipped', 'crown@head']")
		if got := e.player("pk1").Equipped; len(got) != 0 {
			t.Errorf("equipped = %q, want nothing", got)
		}

		e.run("pk1", "/equip other wheel")
		e.expect("pk1", "['unknownItemStatusE', 'wheel@other']")
		e.run("pk1", "/equip head tiara")
		e.expect("pk1", "['unknownItemStatusE', 'tiara@head']")
		e.run("pk1", "/equip head")
		e.expect("pk1", "['equipUsage']")
	})
}

func TestEmote(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{"wave@emote"}
		})
		e.run("pk1", "/emote")
		e.expect("pk1", "['emoteUsage']")
		e.run("pk1", "/emote dance")
		e.expect("pk1", "['unknownItemStatus', 'dance@emote']")
		e.run("pk1", "/emote wave")
		e.expect("pk1", "['needsInGamePlr']")

		e.host.join("pk1")
		e.run("pk1", "/emote wave")
		e.expect("pk1")
		if diff := cmp.Diff([]pendingEmote{{client: clientOf("pk1"), emote: "wave"}}, e.host.emotes, cmp.AllowUnexported(pendingEmote{})); diff != "" {
			t.Errorf("emotes mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestLang(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("pk1", nil)
		e.run("pk1", "/lang")
		e.expect("pk1", "['langUsage']")
		e.run("pk1", "/lang de")
		e.expect("pk1", "['invalidLang']")
		e.run("pk1", "/lang fa")
		e.expect("pk1", "['langUpdated']")
		if got := e.player("pk1").Language(); got != "Farsi" {
			t.Errorf("language = %q, want Farsi", got)
		}
	})
}

func TestMembership(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("temporary", func(p *structs.Player) {
			p.Items = []string{structs.ExpiringAt(structs.VIPItem, testNow.Add(90*time.Second))}
		})
		e.seedPlayer("permanent", func(p *structs.Player) {
			p.Items = []string{structs.VIPItem}
		})
		e.seedPlayer("expired", func(p *structs.Player) {
			p.Items = []string{structs.ExpiringAt(structs.VIPItem, testNow.Add(-time.Second))}
		})

		e.run("temporary", "/membership")
		e.expect("temporary", "['membershipEndsIn', '2 minutes']")
		e.run("permanent", "/membership")
		e.expect("permanent", "['permanentMembership']")
		e.run("expired", "/membership")
		e.expect("expired", "['noMembership']")
	})
}

func TestTag(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{structs.TagItem}
		})
		e.seedPlayer("vip", func(p *structs.Player) {
			p.Items = []string{structs.VIPItem}
		})

		e.run("pk1", "/tag custom <Hero Guy> 255 128 1")
		e.expect("pk1", "['newCustomTag']")
		p := e.player("pk1")
		if p.CustomText == nil || *p.CustomText != "Hero Guy" {
			t.Errorf("custom text = %v", p.CustomText)
		}
		if diff := cmp.Diff([]float64{1, 128.0 / 255, 1.0 / 255, 1}, p.CustomColor, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("custom color mismatch (-want +got):\n%s", diff)
		}
		if p.HasItem(structs.TagItem) {
			t.Error("the custom tag item should be used up")
		}

		e.run("pk1", "/tag custom Again 255 255 255")
		e.expect("pk1", "['customTagNotOwned']")
		e.run("pk1", "/tag custom delete")
		e.expect("pk1", "['customTagDeleted']")
		if e.player("pk1").CustomText != nil {
			t.Error("custom tag should be deleted")
		}
		e.run("pk1", "/tag rank")
		e.expect("pk1", "['rankTagNotOwned']")
		e.run("pk1", "/tag alliance")
		e.expect("pk1", "['notInAlliance']")
		e.run("pk1", "/tag top")
		e.expect("pk1", "['topTagHidden']")
		e.run("pk1", "/tag top")
		e.expect("pk1", "['topTagVisible']")
		e.run("pk1", "/tag sparkle")
		e.expect("pk1", "['tagUsage']")

		e.run("vip", "/tag rank")
		e.expect("vip", "['rankTagHidden']")
		e.run("vip", "/tag custom Hi 0 10 10")
		e.expect("vip", "['genericError', 'tag']")
		e.run("vip", "/tag custom a b")
		e.expect("vip", "['genericError', 'tag']")
		e.run("vip", "/tag custom Hi 10 10 10")
		e.expect("vip", "['newCustomTag']")
		if !e.player("vip").IsVIP() {
			t.Error("VIP custom tags do not use up the membership")
		}
	})
}

func TestChaosDisabled(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.config.SetAllowChaotic(false)
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Items = []string{structs.WheelItem}
		})
		e.run("pk1", "/wheel spin")
		e.expect("pk1", "['chaosDisabled']")
		e.run("pk1", "/powerup speed")
		e.expect("pk1", "['chaosDisabled']")
	})
}

func TestPowerup(t *testing.T) {
	withDispatcher(t, func(e *testEnv) {
		e.seed(structs.ShopKey, `{"powerup": {"speed": {"price": 5}}}`)
		e.seedPlayer("pk1", func(p *structs.Player) {
			p.Points = 5
		})
		e.run("pk1", "/powerup speed")
		e.expect("pk1", "['needsInGamePlr']")

		e.host.join("pk1")
		e.host.join("pk2")
		e.run("pk1", "/powerup jump")
		e.expect("pk1", "['invalidShopItem', 'powerup']")
		e.run("pk1", "/powerup speed")
		e.expect("pk1", "['successfulPurchase', 'speed@powerup']", "['howToUse', '/powerup speed']", "['somethingHappened']")
		p := e.player("pk1")
		if p.Points != 0 || len(p.Items) != 0 {
			t.Errorf("powerup should be bought and used up, player is %+v", p)
		}
		if len(e.host.events) != 1 {
			t.Fatalf("got %d events, want 1", len(e.host.events))
		}
		got := e.host.events[0]
		if got.ev.String() != "everyone powerup speed" || len(got.targets) != 2 {
			t.Errorf("event = %q on %d players", got.ev.String(), len(got.targets))
		}
		e.run("pk1", "/powerup speed")
		e.expect("pk1", "['insufficientFunds', '5']")
	})
}
