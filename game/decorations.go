package game

import (
	"context"
	"strconv"
	"strings"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"
)

const (
	StaffOwner     = "owner"
	StaffManager   = "manager"
	StaffModerator = "moderator"
	// StaffVIP is what a staff list entry of true means.
	StaffVIP = "true"
)

// Tag is one line of text shown above a player.
type Tag struct {
	Text  string
	Color RGBA
}

// Decorations are the visible tags and equipment of a player. Hidden or absent tags are nil.
type Decorations struct {
	Rank     *Tag
	Alliance *Tag
	League   *Tag
	Top      *Tag
	Custom   *Tag
	Equipped []string
}

// Tags returns the present tags in display order.
func (d *Decorations) Tags() []Tag {
	result := []Tag{}
	for _, t := range []*Tag{d.Rank, d.Alliance, d.League, d.Top, d.Custom} {
		if t != nil {
			result = append(result, *t)
		}
	}
	return result
}

var rankTags = map[string]Tag{
	StaffOwner:     {Text: "Owner", Color: RGBA{1, 0.8, 0, 1}},
	StaffManager:   {Text: "Manager", Color: RGBA{0.1, 0.6, 0.1, 1}},
	StaffModerator: {Text: "Moderator", Color: RGBA{0.1, 0.1, 1, 1}},
	StaffVIP:       {Text: "VIP", Color: RGBA{1, 0.15, 0.15, 1}},
}

var allianceColors = map[structs.Rank]RGBA{
	structs.RankOwner:     {1, 0, 0, 1},
	structs.RankCoOwner:   {1, 1, 0, 1},
	structs.RankRecruiter: {0, 0, 1, 1},
	structs.RankMember:    {0, 1, 0, 1},
}

var leagueStyles = [structs.LeagueCount]Tag{
	{Text: "♛", Color: RGBA{0.9, 0, 1, 1}},
	{Text: "♚", Color: RGBA{1, 0, 0, 1}},
	{Text: "♜", Color: RGBA{1, 1, 0, 1}},
	{Text: "♝", Color: RGBA{0, 0, 1, 0.9}},
	{Text: "♞", Color: RGBA{0, 1, 0, 0.8}},
	{Text: "", Color: RGBA{1, 1, 1, 0.75}},
}

// staffRole returns the staff list entry of account, StaffVIP for a plain true, or "".
func (t *tx) staffRole(account string) (string, error) {
	info, err := t.info()
	if err != nil {
		return "", err
	}
	v, found := info.Get("staff_list")
	if !found || v == nil {
		return "", nil
	}
	staff, ok := v.(*structs.Ordered[any])
	if !ok {
		return "", econ.WithStack(errors.Errorf("ginfo staff_list is not an object"))
	}
	switch role, _ := staff.Get(account); r := role.(type) {
	case string:
		return r, nil
	case bool:
		if r {
			return StaffVIP, nil
		}
	}
	return "", nil
}

// Decorations computes the tags of account. It only reads documents and does not
// take the command lock, so hosts may call it while refreshing after a command.
func (d *Dispatcher) Decorations(ctx context.Context, account string) (*Decorations, error) {
	if account == "" {
		account = structs.AnonAccount
	}
	t := d.begin(ctx)
	p, err := t.player(account)
	if err != nil {
		return nil, err
	}
	result := &Decorations{Equipped: []string{}}
	for _, entry := range p.Equipped {
		result.Equipped = append(result.Equipped, structs.ItemID(entry))
	}

	role, err := t.staffRole(account)
	if err != nil {
		return nil, err
	}
	if role == "" && p.IsVIP() {
		role = StaffVIP
	}
	if tag, found := rankTags[role]; found && structs.Shown(p.Tag) {
		result.Rank = &tag
	}

	if id := p.Alliance(); id != "" && structs.Shown(p.AllianceTag) {
		a, err := t.alliance(id)
		if err != nil {
			return nil, err
		}
		if a != nil {
			if rank, found := a.Members.Get(account); found {
				if i, err := rank.Int(); err == nil {
					result.Alliance = &Tag{
						Text:  strings.Repeat("<", i+1) + a.Name + strings.Repeat(">", i+1),
						Color: allianceColors[rank],
					}
				}
			}
		}
	}

	if structs.Shown(p.LeagueTag) {
		leagues, err := t.leagues()
		if err != nil {
			return nil, err
		}
		if tier, pos := leagues.Find(account); tier != -1 && tier < len(leagueStyles) {
			style := leagueStyles[tier]
			result.League = &Tag{Text: style.Text + "#" + strconv.Itoa(pos+1), Color: style.Color}
		}
	}

	if structs.Shown(p.TopTag) {
		tops, err := t.tops()
		if err != nil {
			return nil, err
		}
		if pos := tops.Scores.Index(account); pos != -1 {
			result.Top = &Tag{Text: "#" + strconv.Itoa(pos+1), Color: RGBA{1, 1, 1, 1}}
		}
	}

	if p.CustomText != nil && *p.CustomText != "" && len(p.CustomColor) >= 3 {
		tag := &Tag{Text: *p.CustomText, Color: RGBA{0, 0, 0, 1}}
		copy(tag.Color[:], p.CustomColor)
		result.Custom = tag
	}
	return result, nil
}
