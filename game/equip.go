package game

import (
	"slices"

	"github.com/bsoera/econ/structs"
)

// unequippable categories are consumed by commands rather than worn.
var unequippable = []string{"other", "emote", "powerup"}

func (c *call) equip() error {
	if len(c.args) < 3 {
		return usage("equipUsage")
	}
	category := c.args[1]
	id := structs.MakeItemID(c.args[2], category)
	entry := ""
	for _, e := range append(slices.Clone(c.player.Items), c.player.Equipped...) {
		if structs.ItemID(e) == id {
			entry = e
			break
		}
	}
	if entry == "" || slices.Contains(unequippable, category) {
		return reject("unknownItemStatusE", ColorWarning, id)
	}
	for _, worn := range slices.Clone(c.player.Equipped) {
		if worn != entry && structs.ItemCategory(worn) == category {
			c.player.Equipped = deleteFirst(c.player.Equipped, worn)
			c.player.Items = append(c.player.Items, worn)
			c.notify("unequipped", ColorSuccess, worn)
		}
	}
	if slices.Contains(c.player.Items, entry) {
		c.player.Items = deleteFirst(c.player.Items, entry)
		c.player.Equipped = append(c.player.Equipped, entry)
		c.notify("equipped", ColorSuccess, entry)
	} else {
		c.player.Equipped = deleteFirst(c.player.Equipped, entry)
		c.player.Items = append(c.player.Items, entry)
		c.notify("unequipped", ColorSuccess, entry)
	}
	return nil
}

func (c *call) emote() error {
	if len(c.args) == 1 {
		return usage("emoteUsage")
	}
	name := c.args[1]
	if !c.player.HasItem(structs.MakeItemID(name, "emote")) {
		return reject("unknownItemStatus", ColorWarning, structs.MakeItemID(name, "emote"))
	}
	inGame, err := c.inGame()
	if err != nil {
		return err
	}
	if !inGame {
		return reject("needsInGamePlr", ColorError)
	}
	c.tx.emotes = append(c.tx.emotes, pendingEmote{client: c.req.Client, emote: name})
	return nil
}

func deleteFirst(entries []string, entry string) []string {
	if i := slices.Index(entries, entry); i != -1 {
		return slices.Delete(entries, i, i+1)
	}
	return entries
}
