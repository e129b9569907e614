package game

import (
	"github.com/bsoera/econ/structs"
)

// powerup gives everyone in game the named powerup, buying it first when the actor has none.
func (c *call) powerup() error {
	if len(c.args) == 1 {
		return usage("powerupUsage")
	}
	if !c.d.config.GetAllowChaotic() {
		return usage("chaosDisabled")
	}
	inGame, err := c.inGame()
	if err != nil {
		return err
	}
	if !inGame {
		return reject("needsInGamePlr", ColorError)
	}
	name := c.args[1]
	id := structs.MakeItemID(name, "powerup")
	if !c.player.HasItem(id) {
		if err := c.buy("powerup", name); err != nil {
			return err
		}
	}
	targets, err := c.resolve(ScopeEveryone)
	if err != nil {
		return err
	}
	c.tx.apply(Event{Scope: ScopeEveryone, Kind: KindPowerup, Args: []string{name}}, targets)
	c.player.RemoveItem(id)
	c.notify("somethingHappened", ColorSuccess)
	return nil
}
