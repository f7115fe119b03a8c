// Package bot turns chat messages into journal, settings and role operations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/export"
	tlog "tally/internal/log"
	"tally/internal/services"
)

const (
	DefaultReportLimit = 10
	maxReportLimit     = 100
)

type (
	// Participant is a chat user as the transport sees them.
	Participant struct {
		ID   int64
		Name string
	}

	// Event is one inbound chat message.
	Event struct {
		UpdateID       int
		MessageID      int64
		ChatID         int64
		Actor          Participant
		ReplyTo        *Participant // author of the replied-to message
		ReplyMessageID int64
		Text           string
	}

	Document struct {
		Name string
		Data []byte
	}

	// Reply is what the bot sends back. Document, when set, is sent as a file
	// with Text as its caption.
	Reply struct {
		ChatID   int64
		Text     string
		ReplyTo  int64
		Document *Document
	}

	// Messenger delivers replies to the chat network.
	Messenger interface {
		Send(ctx context.Context, r Reply) error
	}
)

var (
	errUsage     = errors.New("usage")
	errNeedReply = errors.New("reply required")
)

type request struct {
	ev   Event
	cmd  Command
	cfg  core.ChatConfig
	role core.Role
	now  time.Time
}

func (r *request) window() core.Window {
	return core.CurrentWindow(r.cfg, r.now)
}

type route struct {
	need core.Role
	run  func(h *Handler, ctx context.Context, r *request) (Reply, error)
}

const amountRoute = "amount"

var routes = map[string]route{
	amountRoute: {core.RoleOperator, (*Handler).record},
	"start":     {core.RoleNone, (*Handler).help},
	"help":      {core.RoleNone, (*Handler).help},
	"report":    {core.RoleNone, (*Handler).report},
	"sum":       {core.RoleNone, (*Handler).sum},
	"summary":   {core.RoleNone, (*Handler).summary},
	"undo":      {core.RoleOperator, (*Handler).undo},
	"reset":     {core.RoleAdmin, (*Handler).reset},
	"resetall":  {core.RoleAdmin, (*Handler).resetAll},
	"settings":  {core.RoleNone, (*Handler).showSettings},
	"timezone":  {core.RoleAdmin, (*Handler).setTimezone},
	"daystart":  {core.RoleAdmin, (*Handler).setDayStart},
	"currency":  {core.RoleAdmin, (*Handler).setCurrency},
	"language":  {core.RoleAdmin, (*Handler).setLanguage},
	"addop":     {core.RoleAdmin, (*Handler).addOperator},
	"delop":     {core.RoleAdmin, (*Handler).removeOperator},
	"ops":       {core.RoleNone, (*Handler).operators},
	"renew":     {core.RoleRoot, (*Handler).renew},
	"admins":    {core.RoleRoot, (*Handler).admins},
	"whoami":    {core.RoleNone, (*Handler).whoami},
	"export":    {core.RoleAdmin, (*Handler).export},
}

// Handler is the transport-agnostic command processor.
type Handler struct {
	roles       *services.RoleResolver
	settings    *services.Settings
	journal     *services.Journal
	reportLimit int
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Handler)

// WithReportLimit sets how many entries /report shows without an argument.
func WithReportLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.reportLimit = n
		}
	}
}

// WithClock replaces the time source used to compute the current round.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(roles *services.RoleResolver, settings *services.Settings, journal *services.Journal, opts ...Option) *Handler {
	h := &Handler{
		roles:       roles,
		settings:    settings,
		journal:     journal,
		reportLimit: DefaultReportLimit,
		now:         time.Now,
		logger:      slog.Default().With(tlog.FieldComponent, tlog.ComponentBot),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one message. It returns nil when the message is not
// addressed to the bot: plain text, unknown commands and empty messages.
func (h *Handler) Handle(ctx context.Context, ev Event) *Reply {
	if cmd, ok := ParseCommand(ev.Text); ok {
		rt, known := routes[cmd.Name]
		if !known {
			return nil
		}
		return h.dispatch(ctx, ev, cmd, rt)
	}
	if _, ok, _ := ParseAmountLine(ev.Text); ok {
		return h.dispatch(ctx, ev, Command{Name: amountRoute}, routes[amountRoute])
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, ev Event, cmd Command, rt route) *Reply {
	start := time.Now()
	req := &request{ev: ev, cmd: cmd, now: h.now()}

	cfg, err := h.settings.Get(ctx, ev.ChatID)
	if err != nil {
		return h.reply(ev, h.failure(ctx, req, rt, err))
	}
	req.cfg = cfg

	if rt.need > core.RoleNone {
		req.role, err = h.roles.Require(ctx, ev.Actor.ID, ev.ChatID, rt.need)
		if err != nil {
			return h.reply(ev, h.failure(ctx, req, rt, err))
		}
	}

	out, err := rt.run(h, ctx, req)
	if err != nil {
		return h.reply(ev, h.failure(ctx, req, rt, err))
	}

	h.log(ctx).DebugContext(ctx, "Command handled",
		tlog.NewFields().
			WithChat(ev.ChatID, ev.Actor.ID).
			WithCommand(cmd.Name, req.role.String()).
			WithDuration(time.Since(start)).
			ToSlice()...)
	return h.reply(ev, out)
}

func (h *Handler) reply(ev Event, r Reply) *Reply {
	r.ChatID = ev.ChatID
	r.ReplyTo = ev.MessageID
	return &r
}

// failure maps an error kind to the message the chat sees.
func (h *Handler) failure(ctx context.Context, req *request, rt route, err error) Reply {
	m := msgs(req.cfg.Language)
	fields := tlog.NewFields().
		WithChat(req.ev.ChatID, req.ev.Actor.ID).
		WithCommand(req.cmd.Name, req.role.String()).
		WithError(err).
		ToSlice()

	switch {
	case errors.Is(err, errUsage):
		return Reply{Text: m.Usage[req.cmd.Name]}
	case errors.Is(err, errNeedReply):
		return Reply{Text: m.NeedReply}
	case errors.Is(err, core.ErrUnauthorized):
		h.log(ctx).InfoContext(ctx, "Command denied", fields...)
		return Reply{Text: fmt.Sprintf(m.Denied, rt.need)}
	case errors.Is(err, core.ErrValidation):
		return Reply{Text: fmt.Sprintf(m.Invalid, validationDetail(err))}
	case errors.Is(err, core.ErrStorageUnavailable):
		h.log(ctx).ErrorContext(ctx, "Store unavailable", fields...)
		return Reply{Text: m.Unavailable}
	default:
		h.log(ctx).ErrorContext(ctx, "Command failed", fields...)
		return Reply{Text: m.Unavailable}
	}
}

// validationDetail drops the wrapping prefixes and keeps the last reason.
func validationDetail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func (h *Handler) help(_ context.Context, r *request) (Reply, error) {
	return Reply{Text: msgs(r.cfg.Language).Help}, nil
}

func (h *Handler) record(ctx context.Context, r *request) (Reply, error) {
	line, _, err := ParseAmountLine(r.ev.Text)
	if err != nil {
		return Reply{}, err
	}

	tx := core.Transaction{
		ChatID:   r.ev.ChatID,
		Amount:   line.Amount,
		Label:    line.Label,
		Quantity: line.Quantity,
		Actor:    r.ev.Actor.Name,
	}
	if r.ev.ReplyTo != nil {
		tx.Actor = r.ev.ReplyTo.Name
		tx.ReplyMessageID = r.ev.ReplyMessageID
	}

	stored, err := h.journal.Append(ctx, tx)
	if err != nil {
		return Reply{}, err
	}

	w := r.window()
	round, err := h.journal.List(ctx, r.ev.ChatID, &w)
	if err != nil {
		h.log(ctx).WarnContext(ctx, "Round total unavailable after append",
			tlog.FieldChatID, r.ev.ChatID,
			tlog.FieldError, err)
		m := msgs(r.cfg.Language)
		return Reply{Text: fmt.Sprintf(m.Recorded, signed(r.cfg, stored.Amount), stored.Actor)}, nil
	}
	return Reply{Text: formatRecorded(r.cfg, stored, core.Summarize(round))}, nil
}

func (h *Handler) report(ctx context.Context, r *request) (Reply, error) {
	limit := h.reportLimit
	if arg := r.cmd.Arg(0); arg != "" {
		n, ok := parsePositive(arg, maxReportLimit)
		if !ok {
			return Reply{}, errUsage
		}
		limit = n
	}
	w := r.window()
	txs, err := h.journal.List(ctx, r.ev.ChatID, &w)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatReport(r.cfg, w, core.Display(txs, limit))}, nil
}

func (h *Handler) sum(ctx context.Context, r *request) (Reply, error) {
	w := r.window()
	txs, err := h.journal.List(ctx, r.ev.ChatID, &w)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatSum(r.cfg, core.Summarize(txs))}, nil
}

func (h *Handler) summary(ctx context.Context, r *request) (Reply, error) {
	all := r.cmd.scopeAll()
	txs, err := h.list(ctx, r, all)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatSummary(r.cfg, all, core.Summarize(txs))}, nil
}

func (h *Handler) list(ctx context.Context, r *request, all bool) ([]core.Transaction, error) {
	if all {
		return h.journal.List(ctx, r.ev.ChatID, nil)
	}
	w := r.window()
	return h.journal.List(ctx, r.ev.ChatID, &w)
}

func (h *Handler) undo(ctx context.Context, r *request) (Reply, error) {
	m := msgs(r.cfg.Language)
	tx, err := h.journal.Undo(ctx, r.ev.ChatID, r.window())
	if errors.Is(err, core.ErrNotFound) {
		return Reply{Text: m.NothingToUndo}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf(m.Undone, signed(r.cfg, tx.Amount), tx.Actor)}, nil
}

func (h *Handler) reset(ctx context.Context, r *request) (Reply, error) {
	w := r.window()
	n, err := h.journal.DeleteAll(ctx, r.ev.ChatID, &w)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf(msgs(r.cfg.Language).Reset, n)}, nil
}

func (h *Handler) resetAll(ctx context.Context, r *request) (Reply, error) {
	n, err := h.journal.DeleteAll(ctx, r.ev.ChatID, nil)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf(msgs(r.cfg.Language).ResetAll, n)}, nil
}

func (h *Handler) showSettings(_ context.Context, r *request) (Reply, error) {
	return Reply{Text: formatSettings(r.cfg, r.window())}, nil
}

// updated confirms a settings change in the chat's new language.
func (h *Handler) updated(r *request, cfg core.ChatConfig) Reply {
	w := core.CurrentWindow(cfg, r.now)
	return Reply{Text: msgs(cfg.Language).Updated + "\n" + formatSettings(cfg, w)}
}

func (h *Handler) setTimezone(ctx context.Context, r *request) (Reply, error) {
	if len(r.cmd.Args) != 1 {
		return Reply{}, errUsage
	}
	offset, err := core.ParseUTCOffset(r.cmd.Arg(0))
	if err != nil {
		return Reply{}, err
	}
	cfg, err := h.settings.SetUTCOffset(ctx, r.ev.ChatID, offset)
	if err != nil {
		return Reply{}, err
	}
	return h.updated(r, cfg), nil
}

func (h *Handler) setDayStart(ctx context.Context, r *request) (Reply, error) {
	if len(r.cmd.Args) != 1 {
		return Reply{}, errUsage
	}
	start, err := core.ParseTimeOfDay(r.cmd.Arg(0))
	if err != nil {
		return Reply{}, err
	}
	cfg, err := h.settings.SetDayStart(ctx, r.ev.ChatID, start)
	if err != nil {
		return Reply{}, err
	}
	return h.updated(r, cfg), nil
}

func (h *Handler) setCurrency(ctx context.Context, r *request) (Reply, error) {
	currency := r.cmd.Rest(0)
	if currency == "" {
		return Reply{}, errUsage
	}
	if currency == "-" {
		currency = ""
	}
	cfg, err := h.settings.SetCurrency(ctx, r.ev.ChatID, currency)
	if err != nil {
		return Reply{}, err
	}
	return h.updated(r, cfg), nil
}

func (h *Handler) setLanguage(ctx context.Context, r *request) (Reply, error) {
	if len(r.cmd.Args) != 1 {
		return Reply{}, errUsage
	}
	lang, err := core.ParseLanguage(r.cmd.Arg(0))
	if err != nil {
		return Reply{}, err
	}
	cfg, err := h.settings.SetLanguage(ctx, r.ev.ChatID, lang)
	if err != nil {
		return Reply{}, err
	}
	return h.updated(r, cfg), nil
}

func (h *Handler) addOperator(ctx context.Context, r *request) (Reply, error) {
	target := r.ev.ReplyTo
	if target == nil {
		return Reply{}, errNeedReply
	}
	name := r.cmd.Rest(0)
	if name == "" {
		name = target.Name
	}
	if err := h.roles.GrantOperator(ctx, r.ev.ChatID, target.ID, name); err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf(msgs(r.cfg.Language).OperatorAdded, name)}, nil
}

func (h *Handler) removeOperator(ctx context.Context, r *request) (Reply, error) {
	target := r.ev.ReplyTo
	if target == nil {
		return Reply{}, errNeedReply
	}
	m := msgs(r.cfg.Language)
	removed, err := h.roles.RevokeOperator(ctx, r.ev.ChatID, target.ID)
	if err != nil {
		return Reply{}, err
	}
	if !removed {
		return Reply{Text: m.NotOperator}, nil
	}
	return Reply{Text: fmt.Sprintf(m.OperatorGone, target.Name)}, nil
}

func (h *Handler) operators(ctx context.Context, r *request) (Reply, error) {
	ops, err := h.roles.ListOperators(ctx, r.ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatOperators(r.cfg, ops)}, nil
}

func (h *Handler) renew(ctx context.Context, r *request) (Reply, error) {
	var userID int64
	var daysArg string
	switch {
	case r.ev.ReplyTo != nil && len(r.cmd.Args) == 1:
		userID, daysArg = r.ev.ReplyTo.ID, r.cmd.Arg(0)
	case len(r.cmd.Args) == 2:
		id, err := strconv.ParseInt(r.cmd.Arg(0), 10, 64)
		if err != nil || id == 0 {
			return Reply{}, errUsage
		}
		userID, daysArg = id, r.cmd.Arg(1)
	default:
		return Reply{}, errUsage
	}
	days, err := strconv.Atoi(daysArg)
	if err != nil {
		return Reply{}, errUsage
	}

	admin, err := h.roles.RenewAdmin(ctx, userID, days)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf(msgs(r.cfg.Language).Renewed, admin.UserID, localStamp(r.cfg, admin.ExpireAt))}, nil
}

func (h *Handler) admins(ctx context.Context, r *request) (Reply, error) {
	list, err := h.roles.ListAdmins(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatAdmins(r.cfg, list)}, nil
}

func (h *Handler) whoami(ctx context.Context, r *request) (Reply, error) {
	m := msgs(r.cfg.Language)
	role, err := h.roles.Resolve(ctx, r.ev.Actor.ID, r.ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	r.role = role
	text := fmt.Sprintf(m.WhoAmI, role)

	admin, err := h.roles.Admin(ctx, r.ev.Actor.ID)
	if err != nil {
		return Reply{}, err
	}
	if admin != nil && admin.Active(r.now) {
		text += "\n" + fmt.Sprintf(m.AdminUntil, localStamp(r.cfg, admin.ExpireAt))
	}
	return Reply{Text: text}, nil
}

func (h *Handler) export(ctx context.Context, r *request) (Reply, error) {
	m := msgs(r.cfg.Language)
	all := r.cmd.scopeAll()
	txs, err := h.list(ctx, r, all)
	if err != nil {
		return Reply{}, err
	}

	scope, title := core.ScopeRound, m.SummaryRound+" "+localStamp(r.cfg, r.window().Start)
	if all {
		scope, title = core.ScopeAll, m.SummaryAll
	}
	data, err := export.Workbook(r.cfg, title, txs)
	if err != nil {
		return Reply{}, fmt.Errorf("build workbook: %w", err)
	}

	h.log(ctx).InfoContext(ctx, "Workbook exported",
		tlog.FieldChatID, r.ev.ChatID,
		tlog.FieldOperation, tlog.OpExport,
		tlog.FieldScope, scope,
		"rows", len(txs))
	return Reply{
		Text:     fmt.Sprintf(m.ExportCaption, len(txs)),
		Document: &Document{Name: export.Filename(r.ev.ChatID, scope), Data: data},
	}, nil
}

// log prefers the request-scoped logger the transport put in ctx.
func (h *Handler) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(tlog.LoggerContextKey).(*tlog.Logger); ok {
		return l.Logger
	}
	return h.logger
}
