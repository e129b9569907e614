package game

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"
)

// allianceHandler handles one alliance subcommand.
type allianceHandler func(c *call) error

type allianceSubcommand struct {
	handler allianceHandler
	// member is set when the actor has to belong to an alliance.
	member bool
}

var allianceSubcommands = map[string]allianceSubcommand{
	"create":  {handler: (*call).allianceCreate},
	"invite":  {handler: (*call).allianceInvite, member: true},
	"join":    {handler: (*call).allianceJoin},
	"leave":   {handler: (*call).allianceLeave, member: true},
	"destroy": {handler: (*call).allianceDestroy, member: true},
	"plrlist": {handler: (*call).alliancePlayerList, member: true},
	"kick":    {handler: (*call).allianceKick, member: true},
	"promote": {handler: (*call).alliancePromote, member: true},
	"demote":  {handler: (*call).allianceDemote, member: true},
	"public":  {handler: (*call).alliancePublic, member: true},
	"private": {handler: (*call).alliancePrivate, member: true},
}

func (c *call) allianceCommand() error {
	if len(c.args) == 1 {
		return usage("allianceUsage")
	}
	sub, found := allianceSubcommands[c.args[1]]
	if !found {
		return usage("allianceUsage")
	}
	if sub.member && c.alliance == nil {
		return reject("notInAlliance", ColorError)
	}
	return sub.handler(c)
}

// rankOf returns the rank index of a member of the actor's alliance.
func (c *call) rankOf(account string) (int, error) {
	rank, found := c.alliance.Members.Get(account)
	if !found {
		return 0, econ.WithStack(errors.Errorf("%q is not a member of alliance %q", account, c.allianceID))
	}
	i, err := rank.Int()
	return i, econ.WithStack(err)
}

// targetMember resolves the member named by the third argument.
func (c *call) targetMember() (string, int, error) {
	ref, err := c.arg(2)
	if err != nil {
		return "", 0, err
	}
	account, found := c.alliance.Resolve(ref)
	if !found {
		return "", 0, econ.WithStack(errors.Errorf("%q does not name a member of alliance %q", ref, c.allianceID))
	}
	rank, err := c.rankOf(account)
	return account, rank, err
}

// uniqueID draws five digit ids until path(id) is unused.
func (c *call) uniqueID(path func(string) string) (string, error) {
	for range 1000 {
		id := fmt.Sprintf("%05d", c.d.rnd.IntN(100000))
		exists, err := c.tx.exists(path(id))
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", econ.WithStack(errors.New("no unused id found"))
}

func (c *call) allianceCreate() error {
	if c.alliance != nil {
		return reject("alreadyInAlliance", ColorError)
	}
	price := c.d.economy.AlliancePrice
	if c.player.Points < price {
		return reject("insufficientFunds", ColorError, strconv.Itoa(price-c.player.Points))
	}
	name, err := c.arg(2)
	if err != nil {
		return err
	}
	if !isAllianceName(name) || len(c.args) > 3 {
		return reject("isNotAlnum", ColorWarning)
	}
	if limit := c.d.economy.AllianceNameLimit; !shorterThan(name, limit) {
		return reject("tooLong", ColorWarning, strconv.Itoa(limit))
	}
	names, err := c.tx.allianceNames()
	if err != nil {
		return err
	}
	lower := strings.ToLower(name)
	if slices.Contains(*names, lower) {
		return reject("nameTaken", ColorWarning)
	}
	id, err := c.uniqueID(structs.AlliancePath)
	if err != nil {
		return err
	}
	a := &structs.Alliance{Name: name}
	a.Members.Set(c.account, structs.RankOwner)
	*names = append(*names, lower)
	c.tx.put(structs.AllianceNamesKey, names)
	c.tx.putAlliance(id, a)
	c.player.SetAlliance(id)
	c.tx.credit(c.account, c.player, -price, "alliance "+id)
	c.notify("allianceCreateSuccess", ColorSuccess)
	return nil
}

func (c *call) allianceInvite() error {
	rank, err := c.rankOf(c.account)
	if err != nil {
		return err
	}
	if rank < 1 {
		return reject("insufficientAllianceRank", ColorError)
	}
	if c.alliance.Public {
		return reject("publicAllianceCantGenerateInvite", ColorWarning)
	}
	var inv *structs.Invite
	id := c.alliance.Invite()
	if id != "" {
		if inv, err = c.tx.invite(id); err != nil {
			return err
		}
	}
	if inv == nil {
		uses := 1
		if len(c.args) == 3 {
			n, err := c.intArg(2)
			if err != nil {
				return err
			}
			uses = max(1, n)
		}
		if id, err = c.uniqueID(structs.InvitePath); err != nil {
			return err
		}
		inv = &structs.Invite{AllianceID: c.allianceID, Uses: &uses}
		c.tx.put(structs.InvitePath(id), inv)
		c.alliance.SetInvite(id)
		c.tx.putAlliance(c.allianceID, c.alliance)
	}
	uses := "unlimited"
	if inv.Uses != nil {
		uses = strconv.Itoa(*inv.Uses)
	}
	c.notify("allianceInviteSuccess", ColorSuccess, id, uses)
	return nil
}

func (c *call) allianceJoin() error {
	if c.alliance != nil {
		return reject("alreadyInAlliance", ColorError)
	}
	ref, err := c.arg(2)
	if err != nil {
		return err
	}
	id := strings.ToLower(ref)
	// Invite refs name a single document below the invites directory.
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return reject("invalidAllianceInvite", ColorWarning)
	}
	inv, err := c.tx.invite(id)
	if err != nil {
		return err
	}
	if inv == nil {
		return reject("invalidAllianceInvite", ColorWarning)
	}
	a, err := c.tx.alliance(inv.AllianceID)
	if err != nil {
		return err
	}
	if a == nil {
		return reject("invalidAllianceInvite", ColorWarning)
	}
	a.Members.Set(c.account, structs.RankMember)
	if inv.Uses != nil {
		*inv.Uses--
		if *inv.Uses <= 0 {
			if a.Invite() == id {
				a.SetInvite("")
			}
			c.tx.remove(structs.InvitePath(id))
		} else {
			c.tx.put(structs.InvitePath(id), inv)
		}
	}
	c.tx.putAlliance(inv.AllianceID, a)
	c.player.SetAlliance(inv.AllianceID)
	c.allianceID, c.alliance = inv.AllianceID, a
	c.notify("allianceJoinSuccess", ColorSuccess, a.Name)
	return nil
}

func (c *call) allianceLeave() error {
	if rank, _ := c.alliance.Members.Get(c.account); rank == structs.RankOwner && c.alliance.OwnerCount() == 1 {
		return reject("allianceOwnerCantLeave", ColorError)
	}
	c.alliance.Members.Del(c.account)
	c.tx.putAlliance(c.allianceID, c.alliance)
	c.player.SetAlliance("")
	c.notify("allianceLeaveSuccessful", ColorSuccess)
	return nil
}

func (c *call) allianceDestroy() error {
	if rank, _ := c.alliance.Members.Get(c.account); rank != structs.RankOwner {
		return reject("insufficientAllianceRank", ColorError)
	}
	names, err := c.tx.allianceNames()
	if err != nil {
		return err
	}
	lower := strings.ToLower(c.alliance.Name)
	if i := slices.Index(*names, lower); i != -1 {
		*names = slices.Delete(*names, i, i+1)
		c.tx.put(structs.AllianceNamesKey, names)
	}
	if ref := c.alliance.Invite(); ref != "" {
		c.tx.remove(structs.InvitePath(ref))
	}
	if c.alliance.Public {
		c.tx.remove(structs.InvitePath(lower))
	}
	c.tx.remove(structs.AlliancePath(c.allianceID))
	members, err := c.tx.players(c.alliance.Members.Keys())
	if err != nil {
		return err
	}
	for i, account := range c.alliance.Members.Keys() {
		if p := members[i]; p.Alliance() == c.allianceID {
			p.SetAlliance("")
			c.tx.putPlayer(account, p)
		}
	}
	c.player.SetAlliance("")
	c.notify("allianceDeletionSuccess", ColorSuccess)
	return nil
}

func (c *call) alliancePlayerList() error {
	accounts := c.alliance.Members.Keys()
	members, err := c.tx.players(accounts)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(accounts))
	for i, account := range accounts {
		rank, _ := c.alliance.Members.Get(account)
		name := members[i].Name
		if name == "" {
			name = account
		}
		lines = append(lines, fmt.Sprintf("%d - %s - %s", i, rank, name))
	}
	c.notify("alliancePlayerList", ColorSuccess, strings.Join(lines, "\n"))
	return nil
}

func (c *call) allianceKick() error {
	rank, err := c.rankOf(c.account)
	if err != nil {
		return err
	}
	if rank < 2 {
		return reject("insufficientAllianceRank", ColorError)
	}
	target, targetRank, err := c.targetMember()
	if err != nil {
		return err
	}
	if rank <= targetRank {
		return reject("cantKickHigherRanks", ColorWarning)
	}
	c.alliance.Members.Del(target)
	c.tx.putAlliance(c.allianceID, c.alliance)
	p, err := c.tx.player(target)
	if err != nil {
		return err
	}
	if p.Alliance() == c.allianceID {
		p.SetAlliance("")
		c.tx.putPlayer(target, p)
	}
	c.notify("allianceKickSuccessful", ColorSuccess)
	return nil
}

func (c *call) alliancePromote() error {
	rank, err := c.rankOf(c.account)
	if err != nil {
		return err
	}
	if rank == 0 {
		return reject("insufficientAllianceRank", ColorError)
	}
	target, targetRank, err := c.targetMember()
	if err != nil {
		return err
	}
	if rank <= targetRank {
		return reject("cantPromoteHigherThanSelf", ColorWarning)
	}
	if err := c.setRank(target, targetRank+1); err != nil {
		return err
	}
	c.notify("alliancePromoteSuccess", ColorSuccess)
	return nil
}

func (c *call) allianceDemote() error {
	rank, err := c.rankOf(c.account)
	if err != nil {
		return err
	}
	if rank == 0 {
		return reject("insufficientAllianceRank", ColorError)
	}
	target, targetRank, err := c.targetMember()
	if err != nil {
		return err
	}
	if rank <= targetRank && target != c.account {
		return reject("cantDemoteHigherThanSelf", ColorWarning)
	}
	owner, _ := structs.RankOwner.Int()
	if targetRank == owner && c.alliance.OwnerCount() == 1 {
		return reject("allianceOwnerCantBeDemoted", ColorWarning)
	}
	if targetRank == 0 {
		return reject("alreadyLowestRank", ColorWarning)
	}
	if err := c.setRank(target, targetRank-1); err != nil {
		return err
	}
	c.notify("allianceDemoteSuccess", ColorSuccess)
	return nil
}

func (c *call) setRank(account string, i int) error {
	rank, err := structs.RankFromInt(i)
	if err != nil {
		return econ.WithStack(err)
	}
	c.alliance.Members.Set(account, rank)
	c.tx.putAlliance(c.allianceID, c.alliance)
	return nil
}

func (c *call) alliancePublic() error {
	if rank, _ := c.alliance.Members.Get(c.account); rank != structs.RankOwner {
		return reject("insufficientAllianceRank", ColorError)
	}
	if c.alliance.Public {
		return reject("allianceAlreadyPublic", ColorWarning)
	}
	c.alliance.Public = true
	c.tx.put(structs.InvitePath(strings.ToLower(c.alliance.Name)), &structs.Invite{AllianceID: c.allianceID})
	c.tx.putAlliance(c.allianceID, c.alliance)
	c.notify("alliancePublicSuccess", ColorSuccess)
	return nil
}

func (c *call) alliancePrivate() error {
	if rank, _ := c.alliance.Members.Get(c.account); rank != structs.RankOwner {
		return reject("insufficientAllianceRank", ColorError)
	}
	if !c.alliance.Public {
		return reject("allianceAlreadyPrivate", ColorWarning)
	}
	c.alliance.Public = false
	c.tx.remove(structs.InvitePath(strings.ToLower(c.alliance.Name)))
	c.tx.putAlliance(c.allianceID, c.alliance)
	c.notify("alliancePrivateSuccess", ColorSuccess)
	return nil
}
