package game

import (
	"slices"
	"strconv"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"
)

func (c *call) wheel() error {
	if len(c.args) == 1 {
		return usage("wheelUsage")
	}
	if !c.d.config.GetAllowChaotic() {
		return usage("chaosDisabled")
	}
	if !c.player.HasItem(structs.WheelItem) {
		return usage("wheelNotOwned")
	}
	switch c.args[1] {
	case "luck":
		return c.upgradeWheel(&c.player.Luck, "maxWheelLuck", "wheelLuckIncrease")
	case "chaos":
		return c.upgradeWheel(&c.player.Chaos, "maxWheelChaos", "wheelChaosIncrease")
	case "charge":
		return c.upgradeWheel(&c.player.Charge, "maxWheelCharge", "wheelCharged")
	case "spin":
		return c.spin()
	}
	return usage("wheelUsage")
}

func (c *call) upgradeWheel(stat *int, maxed string, increased string) error {
	price := c.d.economy.WheelPrice
	limit := c.d.economy.WheelMax
	if *stat >= limit {
		return reject(maxed, ColorError)
	}
	if c.player.Points < price {
		return reject("insufficientFunds", ColorError, strconv.Itoa(price-c.player.Points))
	}
	c.tx.credit(c.account, c.player, -price, "wheel "+c.args[1])
	*stat++
	c.notify(increased, ColorSuccess, strconv.Itoa(limit-*stat))
	return nil
}

// wheelEvents returns the event strings of one ginfo wheel table. Missing tables are empty.
func (c *call) wheelEvents(name string) ([]string, error) {
	info, err := c.tx.info()
	if err != nil {
		return nil, err
	}
	v, found := info.Get(name)
	if !found || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, econ.WithStack(errors.Errorf("ginfo %q is not a list", name))
	}
	result := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, econ.WithStack(errors.Errorf("ginfo %q holds non-string event %v", name, e))
		}
		result = append(result, s)
	}
	return result, nil
}

// wheelPool weights good and bad events by luck.
func wheelPool(luck int, good []string, bad []string) []string {
	switch luck {
	case 0:
		return slices.Concat(good, bad, bad)
	case 1:
		return slices.Concat(good, bad)
	case 2:
		return slices.Concat(good, good, bad)
	}
	return slices.Clone(good)
}

func (c *call) spin() error {
	inGame, err := c.inGame()
	if err != nil {
		return err
	}
	if !inGame {
		return reject("needsInGamePlr", ColorError)
	}
	chaos := strconv.Itoa(c.player.Chaos)
	good, err := c.wheelEvents("wgc" + chaos)
	if err != nil {
		return err
	}
	bad, err := c.wheelEvents("wbc" + chaos)
	if err != nil {
		return err
	}
	pool := wheelPool(c.player.Luck, good, bad)
	for range c.player.Charge {
		drawn, ev, targets, err := c.draw(pool)
		if err != nil {
			return err
		}
		if drawn == "" {
			break
		}
		if err := c.applyEvent(ev, targets, "wheel"); err != nil {
			return err
		}
		pool = slices.DeleteFunc(pool, func(e string) bool { return e == drawn })
		c.notify("somethingHappened", ColorSuccess)
	}
	c.player.Luck = 0
	c.player.Chaos = 0
	c.player.Charge = 1
	c.player.RemoveItem(structs.WheelItem)
	return nil
}

// draw picks a random event of pool that reaches at least one player.
// Activity events reach no players and are always accepted.
// It returns an empty string when no event in the pool can be applied.
func (c *call) draw(pool []string) (string, Event, []Target, error) {
	candidates := slices.Clone(pool)
	for len(candidates) > 0 {
		drawn := candidates[c.d.rnd.IntN(len(candidates))]
		ev, err := ParseEvent(drawn)
		if err != nil {
			return "", Event{}, nil, econ.WithStack(err)
		}
		targets, err := c.resolve(ev.Scope)
		if err != nil {
			return "", Event{}, nil, err
		}
		if len(targets) > 0 || ev.Scope == ScopeActivity {
			return drawn, ev, targets, nil
		}
		candidates = slices.DeleteFunc(candidates, func(e string) bool { return e == drawn })
	}
	return "", Event{}, nil, nil
}

// applyEvent credits reward events inside the transaction and hands every other
// kind to the host once the transaction commits.
func (c *call) applyEvent(ev Event, targets []Target, reason string) error {
	if ev.Kind != KindReward {
		c.tx.apply(ev, targets)
		return nil
	}
	if len(ev.Args) == 0 {
		return econ.WithStack(errors.Errorf("reward event %q has no reward", ev.String()))
	}
	r, err := structs.ParseRewardArg(ev.Args[0])
	if err != nil {
		return econ.WithStack(err)
	}
	for _, target := range targets {
		account := target.Account
		if account == "" {
			account = structs.AnonAccount
		}
		p, err := c.tx.player(account)
		if err != nil {
			return err
		}
		if r.IsPoints() {
			c.tx.credit(account, p, r.Points, reason+" reward")
			continue
		}
		if !p.Owns(r.Item) {
			p.Items = append(p.Items, r.Grant(c.d.now()))
			c.tx.putPlayer(account, p)
		}
	}
	return nil
}
