package game

import (
	"context"
	"slices"
	"strconv"

	"github.com/bsoera/econ/storage"
	"github.com/bsoera/econ/structs"
)

// Placement is the outcome of one account at the end of a game session.
type Placement struct {
	Client  string
	Account string
	Points  int
}

// FFAPointAwards returns the points for each 0-based placement of a free-for-all with n participants.
func FFAPointAwards(n int) map[int]int {
	switch {
	case n <= 1:
		return map[int]int{}
	case n == 2:
		return map[int]int{0: 6}
	case n == 3:
		return map[int]int{0: 6, 1: 3}
	case n <= 6:
		return map[int]int{0: 8, 1: 4, 2: 2}
	}
	return map[int]int{0: 8, 1: 4, 2: 2, 3: 1}
}

// AwardFFA credits the winners of a free-for-all, best first.
// Only the first player of each account counts, and the table is doubled.
func (d *Dispatcher) AwardFFA(ctx context.Context, winners []Target) error {
	unique := uniqueAccounts(winners)
	table := FFAPointAwards(len(unique))
	placements := make([]Placement, 0, len(unique))
	for i, t := range unique {
		placements = append(placements, Placement{Client: t.Client, Account: t.Account, Points: table[i] * 2})
	}
	return d.Award(ctx, placements)
}

// AwardTeam credits every winning account, unless the losing team only held
// accounts that also played for the winners.
func (d *Dispatcher) AwardTeam(ctx context.Context, winners []Target, losers []Target) error {
	unique := uniqueAccounts(winners)
	accounts := map[string]bool{}
	for _, t := range unique {
		accounts[t.Account] = true
	}
	if !slices.ContainsFunc(losers, func(t Target) bool { return !accounts[accountOf(t)] }) {
		return nil
	}
	placements := make([]Placement, 0, len(unique))
	for _, t := range unique {
		placements = append(placements, Placement{Client: t.Client, Account: t.Account, Points: d.economy.TeamWinPoints})
	}
	return d.Award(ctx, placements)
}

func accountOf(t Target) string {
	if t.Account == "" {
		return structs.AnonAccount
	}
	return t.Account
}

func uniqueAccounts(targets []Target) []Target {
	seen := map[string]bool{}
	result := []Target{}
	for _, t := range targets {
		t.Account = accountOf(t)
		if !seen[t.Account] {
			seen[t.Account] = true
			result = append(result, t)
		}
	}
	return result
}

// Award credits session points: they count towards the top players window and
// the league ladder, and land doubled on the balance of VIP players.
func (d *Dispatcher) Award(ctx context.Context, placements []Placement) error {
	t, err := d.award(ctx, placements)
	if err != nil {
		return err
	}
	t.flush()
	return nil
}

func (d *Dispatcher) award(ctx context.Context, placements []Placement) (*tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.begin(ctx)
	awarded := []storage.AuditAward{}
	for _, pl := range placements {
		if pl.Points <= 0 {
			continue
		}
		pl.Account = accountOf(Target{Account: pl.Account})
		credited, err := t.award(pl)
		if err != nil {
			return nil, err
		}
		awarded = append(awarded, storage.AuditAward{Account: pl.Account, Points: credited, Reason: "session"})
	}
	if err := t.commit(); err != nil {
		return nil, err
	}
	for _, a := range awarded {
		d.audit.Log(ctx, "award", a)
	}
	for _, pl := range placements {
		t.refresh = append(t.refresh, pl.Client)
	}
	return t, nil
}

func (t *tx) award(pl Placement) (int, error) {
	if err := t.rollTops(); err != nil {
		return 0, err
	}
	tops, err := t.tops()
	if err != nil {
		return 0, err
	}
	score, _ := tops.Scores.Get(pl.Account)
	tops.Scores.Set(pl.Account, score+pl.Points)
	structs.SortDescending(tops.Scores)
	t.put(structs.TopsKey, tops)

	leagues, err := t.leagues()
	if err != nil {
		return 0, err
	}
	if leagues.End < structs.Epoch(t.d.now()) {
		leagues = leagues.Next(structs.Epoch(t.d.now().Add(t.d.economy.LeaguesWindow)))
	}
	tier, _ := leagues.Find(pl.Account)
	if tier == -1 {
		tier = structs.LeagueCount - 1
	}
	score, _ = leagues.Tiers[tier].Get(pl.Account)
	leagues.Tiers[tier].Set(pl.Account, score+pl.Points)
	structs.SortDescending(leagues.Tiers[tier])
	t.put(structs.LeaguesKey, leagues)

	p, err := t.player(pl.Account)
	if err != nil {
		return 0, err
	}
	points := pl.Points
	if p.IsVIP() {
		points *= 2
	}
	t.credit(pl.Account, p, points, "session award")
	t.notify(pl.Client, p.Language(), "youEarnedSPoints", ColorSuccess, strconv.Itoa(points))
	if len(p.Items)+len(p.Equipped) == 0 {
		t.notify(pl.Client, p.Language(), "shopGuide", ColorError)
	}
	return points, nil
}

// rollTops pays the window bonuses and starts a new window once the current one has ended.
func (t *tx) rollTops() error {
	tops, err := t.tops()
	if err != nil {
		return err
	}
	now := t.d.now()
	if tops.End >= structs.Epoch(now) {
		return nil
	}
	bonuses := t.d.economy.TopsBonuses
	for i, account := range tops.Scores.Keys() {
		if i >= len(bonuses) {
			break
		}
		p, err := t.player(account)
		if err != nil {
			return err
		}
		t.credit(account, p, bonuses[i], "tops bonus #"+strconv.Itoa(i+1))
	}
	tops.End = structs.Epoch(now.Add(t.d.economy.TopsWindow))
	tops.Scores = structs.NewOrdered[int]()
	t.put(structs.TopsKey, tops)
	return nil
}
