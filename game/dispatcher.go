package game

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/lang"
	"github.com/bsoera/econ/storage"
	"github.com/bsoera/econ/storage/ledger"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"
)

// Economy holds the prices and limits of the chat economy.
type Economy struct {
	AlliancePrice     int
	AllianceNameLimit int
	WheelPrice        int
	WheelMax          int
	TopsWindow        time.Duration
	TopsBonuses       []int
	LeaguesWindow     time.Duration
	TeamWinPoints     int
}

func DefaultEconomy() Economy {
	return Economy{
		AlliancePrice:     1000,
		AllianceNameLimit: 20,
		WheelPrice:        5,
		WheelMax:          3,
		TopsWindow:        30 * 24 * time.Hour,
		TopsBonuses:       []int{10000, 5000, 2500},
		LeaguesWindow:     7 * 24 * time.Hour,
		TeamWinPoints:     12,
	}
}

// Recorder receives committed point movements.
type Recorder interface {
	Record(ctx context.Context, entries ...ledger.Entry) error
}

type Options struct {
	Sink    Sink
	Targets TargetResolver
	Events  EventApplier
	Catalog *lang.Catalog
	Ledger  Recorder
	Audit   *storage.AuditLogger
	Config  *structs.ServerConfig
	Economy *Economy
	Now     func() time.Time
	Rand    *rand.Rand
	Logger  *log.Logger
}

// Dispatcher executes slash commands against the document store.
// Commands run one at a time, and each either commits all its changes or none.
type Dispatcher struct {
	mu      sync.Mutex
	store   *storage.Store
	sink    Sink
	targets TargetResolver
	events  EventApplier
	catalog *lang.Catalog
	ledger  Recorder
	audit   *storage.AuditLogger
	config  *structs.ServerConfig
	economy Economy
	now     func() time.Time
	rnd     *rand.Rand
	logger  *log.Logger
}

func New(store *storage.Store, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		sink:    opts.Sink,
		targets: opts.Targets,
		events:  opts.Events,
		catalog: opts.Catalog,
		ledger:  opts.Ledger,
		audit:   opts.Audit,
		config:  opts.Config,
		economy: DefaultEconomy(),
		now:     opts.Now,
		rnd:     opts.Rand,
		logger:  opts.Logger,
	}
	if opts.Economy != nil {
		d.economy = *opts.Economy
	}
	if d.catalog == nil {
		d.catalog = lang.NewCatalog(store, time.Minute)
	}
	if d.config == nil {
		d.config = structs.NewServerConfig(false)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.rnd == nil {
		d.rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().Unix())))
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	return d
}

func (d *Dispatcher) Config() *structs.ServerConfig {
	return d.config
}

func (d *Dispatcher) Catalog() *lang.Catalog {
	return d.catalog
}

func (d *Dispatcher) logf(format string, args ...any) {
	d.logger.Printf(format, args...)
}

// Request is one chat line from a client.
type Request struct {
	Client  string
	Account string
	Name    string
	Line    string
}

// Rejection is a refused command. It carries the single notice the client gets.
type Rejection struct {
	ID       string
	Color    Color
	Args     []string
	Language string
}

func (r *Rejection) Error() string {
	return lang.Fallback(r.ID, r.Args...)
}

func reject(id string, color Color, args ...string) error {
	return &Rejection{ID: id, Color: color, Args: args}
}

func usage(id string) error {
	return reject(id, ColorNormal)
}

type call struct {
	d          *Dispatcher
	ctx        context.Context
	tx         *tx
	req        Request
	account    string
	category   string
	args       []string
	player     *structs.Player
	allianceID string
	alliance   *structs.Alliance
}

func (c *call) arg(i int) (string, error) {
	if i >= len(c.args) {
		return "", missingArgument(i)
	}
	return c.args[i], nil
}

func (c *call) intArg(i int) (int, error) {
	s, err := c.arg(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, econ.WithStack(err)
	}
	return n, nil
}

func (c *call) notify(id string, color Color, args ...string) {
	c.tx.notify(c.req.Client, c.player.Language(), id, color, args...)
}

func (c *call) resolve(scope Scope) ([]Target, error) {
	if c.d.targets == nil {
		return nil, nil
	}
	targets, err := c.d.targets.ResolveTargets(c.ctx, scope, c.req.Client)
	if err != nil {
		return nil, econ.WithStack(err)
	}
	return targets, nil
}

func (c *call) inGame() (bool, error) {
	own, err := c.resolve(ScopeSelf)
	return len(own) > 0, err
}

type command struct {
	names map[string]bool
	f     func(*call) error
}

type commands []command

func (cmds commands) find(name string) (func(*call) error, bool) {
	for _, cmd := range cmds {
		if cmd.names[name] {
			return cmd.f, true
		}
	}
	return nil, false
}

func m(s ...string) map[string]bool {
	res := map[string]bool{}
	for _, p := range s {
		res[p] = true
	}
	return res
}

var chatCommands = commands{
	{names: m("code"), f: (*call).code},
	{names: m("tag"), f: (*call).tag},
	{names: m("shop"), f: (*call).shop},
	{names: m("equip"), f: (*call).equip},
	{names: m("emote"), f: (*call).emote},
	{names: m("lang"), f: (*call).lang},
	{names: m("help"), f: (*call).help},
	{names: m("wheel"), f: (*call).wheel},
	{names: m("alliance"), f: (*call).allianceCommand},
	{names: m("powerup"), f: (*call).powerup},
	{names: m("membership"), f: (*call).membership},
}

// Handle runs line if it is a slash command and reports whether it was one.
// Errors are storage failures while loading the acting player or committing;
// command failures are reported to the client instead.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (bool, error) {
	if !strings.HasPrefix(req.Line, "/") {
		return false, nil
	}
	t, err := d.handle(ctx, req)
	if err != nil {
		return true, err
	}
	t.flush()
	return true, nil
}

// handle runs req with d.mu held and returns the transaction whose output is still to be flushed.
func (d *Dispatcher) handle(ctx context.Context, req Request) (*tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	words := strings.Fields(req.Line[1:])
	category := "help"
	if len(words) > 0 {
		category = words[0]
	}
	account := req.Account
	if account == "" {
		account = structs.AnonAccount
	}
	c := &call{
		d:        d,
		ctx:      ctx,
		tx:       d.begin(ctx),
		req:      req,
		account:  account,
		category: category,
		args:     words,
	}
	if err := c.setup(); err != nil {
		return nil, err
	}

	f, found := chatCommands.find(category)
	if !found {
		d.reject(c, &Rejection{ID: "invalidCommand", Color: ColorError})
		return c.tx, nil
	}
	err := f(c)
	rejection := &Rejection{}
	switch {
	case err == nil:
	case errors.As(err, &rejection):
		d.reject(c, rejection)
		return c.tx, nil
	default:
		d.logf("%q by %q: %v\n%s", req.Line, account, err, econ.StackTrace(err))
		d.audit.Log(ctx, "command_failed", storage.AuditFailure{
			Account:  account,
			Line:     req.Line,
			Category: category,
			Error:    err.Error(),
		})
		c.tx.discard()
		c.tx.notify(req.Client, c.player.Language(), "genericError", ColorError, category)
		return c.tx, nil
	}

	c.tx.putPlayer(account, c.player)
	if err := c.tx.commit(); err != nil {
		return nil, err
	}
	writes, removes := c.tx.writes()
	d.audit.Log(ctx, "command", storage.AuditCommand{
		Account: account,
		Client:  req.Client,
		Line:    req.Line,
		Writes:  writes,
		Removes: removes,
	})
	c.tx.refresh = append(c.tx.refresh, req.Client)
	return c.tx, nil
}

func (c *call) setup() error {
	p, err := c.tx.player(c.account)
	if err != nil {
		return err
	}
	if c.req.Name != "" && p.Name != c.req.Name {
		p.Name = c.req.Name
	}
	c.player = p
	if id := p.Alliance(); id != "" {
		a, err := c.tx.alliance(id)
		if err != nil {
			return err
		}
		if a != nil {
			c.allianceID = id
			c.alliance = a
		}
	}
	return nil
}

// reject audits r and replaces whatever the command staged with the rejection notice.
func (d *Dispatcher) reject(c *call, r *Rejection) {
	language := r.Language
	if language == "" {
		language = c.player.Language()
	}
	d.audit.Log(c.ctx, "command_rejected", storage.AuditRejection{
		Account: c.account,
		Line:    c.req.Line,
		Message: r.ID,
	})
	c.tx.discard()
	c.tx.notify(c.req.Client, language, r.ID, r.Color, r.Args...)
}

// deliver renders n and hands it to the sink. Players without a language get a
// language selection hint first.
func (d *Dispatcher) deliver(ctx context.Context, n notice) {
	if d.sink == nil {
		return
	}
	text := n.raw
	if n.id != "" {
		if n.language == "" {
			d.deliver(ctx, notice{client: n.client, id: lang.SelectLang, color: ColorError, language: lang.Mixed})
		}
		rendered, err := d.catalog.Render(ctx, n.id, n.language, n.args...)
		if err != nil {
			d.logf("rendering %q: %v", n.id, err)
			rendered = lang.Fallback(n.id, n.args...)
		}
		text = rendered
	}
	if err := d.sink.Deliver(ctx, n.client, text, n.color); err != nil {
		d.logf("delivering to %q: %v", n.client, err)
	}
}

// Notify sends a localized message outside of any command, e.g. from the host.
func (d *Dispatcher) Notify(ctx context.Context, client string, language string, id string, color Color, args ...string) {
	d.deliver(ctx, notice{client: client, id: id, color: color, language: language, args: args})
}

func (c *call) help() error {
	c.notify("helpNormal", ColorNormal)
	return nil
}

func (c *call) lang() error {
	if len(c.args) == 1 {
		return &Rejection{ID: "langUsage", Color: ColorNormal, Language: lang.Mixed}
	}
	switch c.args[1] {
	case "eng":
		c.player.Lang = ptr("English")
	case "fa":
		c.player.Lang = ptr("Farsi")
	default:
		return reject("invalidLang", ColorWarning)
	}
	c.notify("langUpdated", ColorSuccess)
	return nil
}

func (c *call) membership() error {
	entry, found := c.player.FindItem(structs.VIPItem)
	if !found {
		return reject("noMembership", ColorWarning)
	}
	_, deadline, expiring := structs.SplitExpiring(entry)
	if !expiring {
		c.notify("permanentMembership", ColorSuccess)
		return nil
	}
	c.notify("membershipEndsIn", ColorSuccess, lang.Remaining(structs.FromEpoch(deadline).Sub(c.d.now())))
	return nil
}

func (c *call) pointsText(n int) string {
	return fmt.Sprintf("%d SPoints", n)
}

func ptr[T any](v T) *T {
	return &v
}
