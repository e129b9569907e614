package game

import (
	"slices"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"
)

func (c *call) code() error {
	if len(c.args) == 1 {
		return usage("codeUsage")
	}
	switch c.args[1] {
	case "promo":
		return c.promo()
	case "purchase":
		return c.purchase()
	}
	return usage("codeUsage")
}

// codeTable returns the reward lists of one ginfo table, creating it if absent.
func (c *call) codeTable(name string) (*structs.Ordered[any], error) {
	info, err := c.tx.info()
	if err != nil {
		return nil, err
	}
	v, found := info.Get(name)
	if !found {
		return structs.NewOrdered[any](), nil
	}
	table, ok := v.(*structs.Ordered[any])
	if !ok {
		return nil, econ.WithStack(errors.Errorf("ginfo %q is not an object", name))
	}
	return table, nil
}

func codeRewards(table *structs.Ordered[any], code string) ([]any, error) {
	v, found := table.Get(code)
	if !found || v == nil {
		return nil, nil
	}
	rewards, ok := v.([]any)
	if !ok {
		return nil, econ.WithStack(errors.Errorf("rewards of %q are not a list", code))
	}
	return rewards, nil
}

func (c *call) promo() error {
	code, err := c.arg(2)
	if err != nil {
		return err
	}
	table, err := c.codeTable("pcodes")
	if err != nil {
		return err
	}
	rewards, err := codeRewards(table, code)
	if err != nil {
		return err
	}
	if len(rewards) == 0 || slices.Contains(c.player.Codes, code) {
		return reject("usedCode", ColorError)
	}
	c.player.Codes = append(c.player.Codes, code)
	for _, v := range rewards {
		r, err := structs.RewardFromValue(v)
		if err != nil {
			return econ.WithStack(err)
		}
		c.grant(r, "promo "+code)
	}
	return nil
}

func (c *call) purchase() error {
	code, err := c.arg(2)
	if err != nil {
		return err
	}
	table, err := c.codeTable("purchases")
	if err != nil {
		return err
	}
	rewards, err := codeRewards(table, code)
	if err != nil {
		return err
	}
	if len(rewards) == 0 {
		return reject("usedCode", ColorError)
	}
	remaining := []any{}
	for _, v := range rewards {
		r, err := structs.RewardFromValue(v)
		if err != nil {
			return econ.WithStack(err)
		}
		if !c.grant(r, "purchase "+code) {
			remaining = append(remaining, v)
		}
	}
	if len(remaining) == 0 {
		table.Del(code)
	} else {
		table.Set(code, remaining)
	}
	info, err := c.tx.info()
	if err != nil {
		return err
	}
	info.Set("purchases", table)
	c.tx.put(structs.InfoKey, info)
	return nil
}

// grant hands a code reward to the acting player. Items already owned are refused.
func (c *call) grant(r structs.Reward, reason string) bool {
	if r.IsPoints() {
		c.tx.credit(c.account, c.player, r.Points, reason)
		c.notify("successfulCodeRegister", ColorSuccess, c.pointsText(r.Points))
		return true
	}
	if c.player.Owns(r.Item) {
		c.notify("alreadyOwned", ColorWarning, r.Item)
		return false
	}
	entry := r.Grant(c.d.now())
	c.player.Items = append(c.player.Items, entry)
	c.notify("successfulCodeRegister", ColorSuccess, entry)
	return true
}
