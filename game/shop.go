package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bsoera/econ/structs"
)

func (c *call) shop() error {
	shop, err := c.tx.shop()
	if err != nil {
		return err
	}
	if len(c.args) == 1 {
		buf := &strings.Builder{}
		for category := range shop.Each() {
			buf.WriteString(category)
			buf.WriteString("\n")
		}
		c.notify("shopMain", ColorNormal, buf.String())
		if c.player.Points > 0 {
			c.notify("amountOfSPoints", ColorSuccess, strconv.Itoa(c.player.Points))
		} else {
			c.notify("0SPoints", ColorWarning)
		}
		return nil
	}
	category := c.args[1]
	items, found := shop.Get(category)
	if !found || items == nil || items.Len() == 0 {
		return reject("invalidShopCategory", ColorError)
	}
	switch len(c.args) {
	case 2:
		lines := make([]string, 0, items.Len())
		for name, item := range items.Each() {
			lines = append(lines, fmt.Sprintf("%s: %d SPoints", name, item.Price))
		}
		c.tx.say(c.req.Client, strings.Join(lines, "\n"), ColorNormal)
		return nil
	case 3:
		return c.buy(category, c.args[2])
	}
	return usage("shopUsage")
}

// buy purchases one shop item for the acting player. A usage hint for the new
// item follows the purchase notice.
func (c *call) buy(category string, name string) error {
	shop, err := c.tx.shop()
	if err != nil {
		return err
	}
	items, found := shop.Get(category)
	if !found || items == nil || items.Len() == 0 {
		return reject("invalidShopCategory", ColorError)
	}
	item, found := items.Get(name)
	if !found {
		return reject("invalidShopItem", ColorError, category)
	}
	id := structs.MakeItemID(name, category)
	if c.player.Owns(id) {
		return reject("alreadyOwned", ColorWarning, id)
	}
	if c.player.Points < item.Price {
		return reject("insufficientFunds", ColorError, strconv.Itoa(item.Price-c.player.Points))
	}
	c.tx.credit(c.account, c.player, -item.Price, "shop "+id)
	c.player.Items = append(c.player.Items, id)
	c.notify("successfulPurchase", ColorSuccess, id)
	switch {
	case id == structs.TagItem:
		c.notify("tagUsage", ColorNormal)
	case id == structs.WheelItem:
		c.notify("wheelUsage", ColorNormal)
	case category == "emote":
		c.notify("howToUse", ColorNormal, "/emote "+name)
	case category == "powerup":
		c.notify("howToUse", ColorNormal, "/powerup "+name)
	default:
		c.notify("howToUse", ColorNormal, "/equip "+category+" "+name)
	}
	return nil
}
