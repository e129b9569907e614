package game

import (
	"strconv"
	"strings"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
)

func (c *call) tag() error {
	if len(c.args) == 1 {
		return usage("tagUsage")
	}
	switch c.args[1] {
	case "rank":
		role, err := c.tx.staffRole(c.account)
		if err != nil {
			return err
		}
		if role == "" && !c.player.IsVIP() {
			return reject("rankTagNotOwned", ColorError)
		}
		c.toggle(&c.player.Tag, "rankTagVisible", "rankTagHidden")
	case "alliance":
		if c.alliance == nil {
			return reject("notInAlliance", ColorError)
		}
		c.toggle(&c.player.AllianceTag, "allianceTagVisible", "allianceTagHidden")
	case "league":
		c.toggle(&c.player.LeagueTag, "leagueTagVisible", "leagueTagHidden")
	case "top":
		c.toggle(&c.player.TopTag, "topTagVisible", "topTagHidden")
	case "custom":
		return c.customTag()
	default:
		return usage("tagUsage")
	}
	return nil
}

func (c *call) toggle(flag **bool, visible string, hidden string) {
	if structs.Toggle(flag) {
		c.notify(visible, ColorSuccess)
	} else {
		c.notify(hidden, ColorSuccess)
	}
}

// customTag handles "/tag custom delete" and "/tag custom <text...> <r> <g> <b>".
func (c *call) customTag() error {
	if len(c.args) == 3 && c.args[2] == "delete" {
		c.player.CustomText = nil
		c.player.CustomColor = nil
		c.notify("customTagDeleted", ColorSuccess)
		return nil
	}
	vip := c.player.IsVIP()
	if !vip && !c.player.HasItem(structs.TagItem) {
		return reject("customTagNotOwned", ColorWarning)
	}
	if len(c.args) < 6 {
		return missingArgument(len(c.args))
	}
	text, color, err := parseCustomTag(c.args[2:])
	if err != nil {
		return err
	}
	if text == "" {
		return reject("genericError", ColorError, c.category)
	}
	for _, channel := range color[:3] {
		if channel <= 0 || channel > 1 {
			return reject("genericError", ColorError, c.category)
		}
	}
	c.player.CustomText = &text
	c.player.CustomColor = color[:]
	c.notify("newCustomTag", ColorSuccess)
	if !vip {
		c.player.RemoveItem(structs.TagItem)
	}
	return nil
}

// parseCustomTag splits words into the tag text and the trailing 0-255 color channels.
// Angle brackets wrapping the text are stripped since the alliance tag uses them.
func parseCustomTag(words []string) (string, RGBA, error) {
	color := RGBA{0, 0, 0, 1}
	split := len(words) - 3
	for i, word := range words[split:] {
		n, err := strconv.Atoi(word)
		if err != nil {
			return "", color, econ.WithStack(err)
		}
		color[i] = float64(n) / 255
	}
	text := strings.Join(words[:split], " ")
	text = strings.TrimLeft(text, "<")
	text = strings.TrimRight(text, ">")
	return text, color, nil
}
