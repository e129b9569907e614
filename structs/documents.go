package structs

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	goccy "github.com/goccy/go-json"
)

const (
	PlayersDir       = "gstats"
	AlliancesDir     = "galliances"
	InvitesDir       = "gallianceinvites"
	AllianceNamesKey = "galliancenames"
	InfoKey          = "ginfo"
	ShopKey          = "gshop"
	LanguageKey      = "glang"
	LeaguesKey       = "gleagues"

	// TopsKey and ServerConfigKey live in the per-instance tree.
	TopsKey         = "stops"
	ServerConfigKey = "sconfig"
)

const (
	AnonAccount = "anon"
	VIPItem     = "vip@other"
	TagItem     = "tag@other"
	WheelItem   = "wheel@other"
)

func PlayerPath(account string) string {
	if account == "" {
		account = AnonAccount
	}
	return PlayersDir + "/" + account
}

func AlliancePath(id string) string {
	return AlliancesDir + "/" + id
}

func InvitePath(id string) string {
	return InvitesDir + "/" + id
}

// Player is the economy state of one account.
type Player struct {
	Name        string    `json:"un,omitempty"`
	Codes       []string  `json:"upcodes"`
	Points      int       `json:"spoints"`
	Items       []string  `json:"items"`
	Equipped    []string  `json:"equipped"`
	Tag         *bool     `json:"tag,omitempty"`
	Lang        *string   `json:"lang,omitempty"`
	Chaos       int       `json:"chaos"`
	Luck        int       `json:"luck"`
	Charge      int       `json:"charge"`
	AllianceID  *string   `json:"allianceidref,omitempty"`
	AllianceTag *bool     `json:"alliancetag,omitempty"`
	TopTag      *bool     `json:"toptag,omitempty"`
	LeagueTag   *bool     `json:"leaguetag,omitempty"`
	CustomText  *string   `json:"cstmtext,omitempty"`
	CustomColor []float64 `json:"cstmcolor,omitempty"`
}

// NewPlayer returns a player with every default applied.
// Decoding a stored document into it keeps the defaults for absent keys.
func NewPlayer() *Player {
	return &Player{
		Codes:    []string{},
		Items:    []string{},
		Equipped: []string{},
		Charge:   1,
	}
}

// Normalize replaces nil lists, which a stored null decodes to.
func (p *Player) Normalize() {
	if p.Codes == nil {
		p.Codes = []string{}
	}
	if p.Items == nil {
		p.Items = []string{}
	}
	if p.Equipped == nil {
		p.Equipped = []string{}
	}
}

func (p *Player) Language() string {
	if p.Lang == nil {
		return ""
	}
	return *p.Lang
}

func (p *Player) Alliance() string {
	if p.AllianceID == nil {
		return ""
	}
	return *p.AllianceID
}

func (p *Player) SetAlliance(id string) {
	if id == "" {
		p.AllianceID = nil
		return
	}
	p.AllianceID = &id
}

// FindItem returns the first unequipped entry with the given id.
func (p *Player) FindItem(id string) (string, bool) {
	for _, entry := range p.Items {
		if ItemID(entry) == id {
			return entry, true
		}
	}
	return "", false
}

func (p *Player) HasItem(id string) bool {
	_, found := p.FindItem(id)
	return found
}

// Owns checks both unequipped and equipped entries.
func (p *Player) Owns(id string) bool {
	for _, entry := range p.Equipped {
		if ItemID(entry) == id {
			return true
		}
	}
	return p.HasItem(id)
}

// RemoveItem drops the first unequipped entry with the given id.
func (p *Player) RemoveItem(id string) bool {
	for i, entry := range p.Items {
		if ItemID(entry) == id {
			p.Items = slices.Delete(p.Items, i, i+1)
			return true
		}
	}
	return false
}

func (p *Player) IsVIP() bool {
	return p.HasItem(VIPItem)
}

// Shown reports whether a tag flag allows display. Unset flags show.
func Shown(flag *bool) bool {
	return flag == nil || *flag
}

// Toggle flips a tag flag, treating unset as shown, and returns the new visibility.
func Toggle(flag **bool) bool {
	next := !Shown(*flag)
	*flag = &next
	return next
}

type Rank string

const (
	RankMember    Rank = "member"
	RankRecruiter Rank = "recruiter"
	RankCoOwner   Rank = "co-owner"
	RankOwner     Rank = "owner"
)

var ranks = []Rank{RankMember, RankRecruiter, RankCoOwner, RankOwner}

func (r Rank) Int() (int, error) {
	if i := slices.Index(ranks, r); i != -1 {
		return i, nil
	}
	return 0, fmt.Errorf("%q is not a valid rank", string(r))
}

func RankFromInt(i int) (Rank, error) {
	if i < 0 || i >= len(ranks) {
		return "", fmt.Errorf("%d is not a valid rank", i)
	}
	return ranks[i], nil
}

type Alliance struct {
	Name      string        `json:"name"`
	Members   Ordered[Rank] `json:"members"`
	Public    bool          `json:"public"`
	InviteRef *string       `json:"invref,omitempty"`
}

func (a *Alliance) Invite() string {
	if a.InviteRef == nil {
		return ""
	}
	return *a.InviteRef
}

func (a *Alliance) SetInvite(id string) {
	if id == "" {
		a.InviteRef = nil
		return
	}
	a.InviteRef = &id
}

func (a *Alliance) OwnerCount() int {
	count := 0
	for _, rank := range a.Members.Each() {
		if rank == RankOwner {
			count++
		}
	}
	return count
}

// Resolve turns a member reference into an account id.
// Decimal references are positions in member order, anything else is an account id.
func (a *Alliance) Resolve(ref string) (string, bool) {
	if i, err := strconv.Atoi(ref); err == nil {
		return a.Members.KeyAt(i)
	}
	if a.Members.Has(ref) {
		return ref, true
	}
	return "", false
}

type Invite struct {
	AllianceID string `json:"allianceid"`
	Uses       *int   `json:"uses,omitempty"`
}

// Reward is one entry of a promo or purchase code: either points or an item with optional duration.
type Reward struct {
	Points   int
	Item     string
	Duration *float64
}

func (r Reward) IsPoints() bool {
	return r.Item == ""
}

// Grant returns the inventory entry for an item reward granted at now.
func (r Reward) Grant(now time.Time) string {
	if r.Duration == nil {
		return r.Item
	}
	return ExpiringAt(r.Item, now.Add(time.Duration(*r.Duration*float64(time.Second))))
}

// ParseItemReward parses "<item>[␟<seconds>]".
func ParseItemReward(s string) (Reward, error) {
	parts := strings.Split(s, Separator)
	switch len(parts) {
	case 1:
		return Reward{Item: parts[0]}, nil
	case 2:
		d, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Reward{}, fmt.Errorf("invalid reward duration in %q: %w", s, err)
		}
		return Reward{Item: parts[0], Duration: &d}, nil
	}
	return Reward{}, fmt.Errorf("invalid item reward %q", s)
}

// ParseRewardArg parses a textual reward, an integer meaning points.
func ParseRewardArg(s string) (Reward, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return Reward{Points: i}, nil
	}
	return ParseItemReward(s)
}

// RewardFromValue interprets a decoded JSON value as a reward.
func RewardFromValue(v any) (Reward, error) {
	switch t := v.(type) {
	case int64:
		return Reward{Points: int(t)}, nil
	case float64:
		if t == math.Trunc(t) {
			return Reward{Points: int(t)}, nil
		}
	case string:
		return ParseItemReward(t)
	}
	return Reward{}, fmt.Errorf("invalid reward %v", v)
}

func (r *Reward) UnmarshalJSON(b []byte) error {
	var v any
	if err := goccy.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := RewardFromValue(v)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Reward) MarshalJSON() ([]byte, error) {
	if r.IsPoints() {
		return goccy.Marshal(r.Points)
	}
	if r.Duration == nil {
		return goccy.Marshal(r.Item)
	}
	return goccy.Marshal(r.Item + Separator + strconv.FormatFloat(*r.Duration, 'f', -1, 64))
}

type ShopItem struct {
	Price int `json:"price"`
}

// Shop is the catalog: category -> item name -> item.
type Shop = Ordered[*Ordered[ShopItem]]

// Tops is the rolling top players window, scores kept in descending order.
type Tops struct {
	End    float64
	Scores *Ordered[int]
}

func NewTops() *Tops {
	return &Tops{Scores: NewOrdered[int]()}
}

func (t *Tops) UnmarshalJSON(b []byte) error {
	raw := NewOrdered[float64]()
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}
	t.End = 0
	t.Scores = NewOrdered[int]()
	for k, v := range raw.Each() {
		if k == "end" {
			t.End = v
			continue
		}
		t.Scores.Set(k, int(v))
	}
	return nil
}

func (t Tops) MarshalJSON() ([]byte, error) {
	out := NewOrdered[any]()
	out.Set("end", t.End)
	for k, v := range t.Scores.Each() {
		out.Set(k, v)
	}
	return out.MarshalJSON()
}

const LeagueCount = 6

type Leagues struct {
	End   float64         `json:"end"`
	Tiers []*Ordered[int] `json:"leagues"`
}

func NewLeagues() *Leagues {
	l := &Leagues{}
	l.Normalize()
	return l
}

// Normalize pads the ladder to LeagueCount tiers.
func (l *Leagues) Normalize() {
	for i := range l.Tiers {
		if l.Tiers[i] == nil {
			l.Tiers[i] = NewOrdered[int]()
		}
	}
	for len(l.Tiers) < LeagueCount {
		l.Tiers = append(l.Tiers, NewOrdered[int]())
	}
}

// Find returns the tier and 0-based position of account, or -1.
func (l *Leagues) Find(account string) (int, int) {
	for tier, scores := range l.Tiers {
		if pos := scores.Index(account); pos != -1 {
			return tier, pos
		}
	}
	return -1, -1
}

// SortDescending orders scores from highest to lowest, ties keeping their order.
func SortDescending(scores *Ordered[int]) {
	scores.SortFunc(func(a, b int) bool { return a > b })
}

// Next builds the ladder of the following window. The top half of each tier moves up,
// the bottom half moves down, everyone restarts at zero and the lowest tier is emptied.
func (l *Leagues) Next(end float64) *Leagues {
	next := &Leagues{End: end}
	next.Normalize()
	last := LeagueCount - 1
	for tier, scores := range l.Tiers {
		if tier > last {
			break
		}
		n := float64(scores.Len())
		for i, account := range scores.Keys() {
			ratio := float64(i+1) / n
			switch {
			case tier != 0 && ratio < 0.5:
				next.Tiers[tier-1].Set(account, 0)
			case tier != last && ratio > 0.5:
				next.Tiers[tier+1].Set(account, 0)
			default:
				next.Tiers[tier].Set(account, 0)
			}
		}
	}
	next.Tiers[last] = NewOrdered[int]()
	return next
}
