package channel

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nare/internal/i18n"
	"nare/internal/orchestrator"
	"nare/internal/permission"
	"nare/internal/session"
)

// DefaultRetryBackoff is the pause after a failed poll.
const DefaultRetryBackoff = 5 * time.Second

// Responder is the engine behind the adapter.
type Responder interface {
	Respond(ctx context.Context, sess *session.ChatSession, text string) (orchestrator.Result, error)
	RunConfirmed(ctx context.Context, sess *session.ChatSession, command string) string
	ProviderName() string
}

type Options struct {
	// AllowedChats restricts who may talk to the engine; empty allows all.
	AllowedChats []string
	ConfirmTTL   time.Duration
	RetryBackoff time.Duration
	Permissions  orchestrator.PermissionSource
	Logger       *zap.Logger
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
}

// Adapter 单循环长轮询：一次只处理一个更新，无需加锁
// Adapter is the single poll loop. Updates are handled one at a time, so
// session and confirmation state need no locking.
type Adapter struct {
	transport Transport
	sessions  session.Store
	engine    Responder
	perms     orchestrator.PermissionSource
	allowed   map[string]bool
	ttl       time.Duration
	backoff   time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       *zap.Logger
	offset    int64
}

func NewAdapter(t Transport, sessions session.Store, engine Responder, opts Options) *Adapter {
	a := &Adapter{
		transport: t,
		sessions:  sessions,
		engine:    engine,
		perms:     opts.Permissions,
		ttl:       opts.ConfirmTTL,
		backoff:   opts.RetryBackoff,
		now:       opts.Now,
		sleep:     opts.Sleep,
		log:       opts.Logger,
	}
	if a.ttl <= 0 {
		a.ttl = session.DefaultConfirmTTL
	}
	if a.backoff <= 0 {
		a.backoff = DefaultRetryBackoff
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.sleep == nil {
		a.sleep = sleepContext
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if len(opts.AllowedChats) > 0 {
		a.allowed = make(map[string]bool, len(opts.AllowedChats))
		for _, id := range opts.AllowedChats {
			a.allowed[strings.TrimSpace(id)] = true
		}
	}
	return a
}

// Offset is the next update id the adapter will ask for.
func (a *Adapter) Offset() int64 { return a.offset }

// Run 长轮询直到 ctx 取消；传输错误记录日志后固定退避重试，offset 不丢失
// Run polls until ctx is cancelled or the transport closes. Transport faults
// are logged and retried after a fixed backoff without losing the offset.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		a.sweep()

		updates, err := a.transport.GetUpdates(ctx, a.offset)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return nil
			}
			a.log.Warn("poll failed", zap.Int64("offset", a.offset), zap.Duration("backoff", a.backoff), zap.Error(err))
			if err := a.sleep(ctx, a.backoff); err != nil {
				return nil
			}
			continue
		}

		for _, u := range updates {
			if u.ID >= a.offset {
				a.offset = u.ID + 1
			}
			a.handle(ctx, u)
		}
	}
}

// sweep 清除已过期的待确认命令；静默，不发送任何消息
// sweep silently clears confirmations whose deadline has passed.
func (a *Adapter) sweep() {
	cleared, err := session.SweepExpired(a.sessions, a.now())
	if err != nil {
		a.log.Warn("expiry sweep failed", zap.Error(err))
	}
	for _, p := range cleared {
		a.log.Info("confirmation expired", zap.String("confirmation_id", p.ID), zap.String("command", p.Command))
	}
}

func (a *Adapter) handle(ctx context.Context, u Update) {
	log := a.log.With(zap.Int64("update_id", u.ID), zap.String("chat_id", u.ChatID))
	if u.ChatID == "" {
		log.Debug("update without chat ignored")
		return
	}
	if a.allowed != nil && !a.allowed[u.ChatID] {
		log.Warn("chat not allowed")
		tr := i18n.For("en")
		if u.Callback != nil {
			a.answer(ctx, log, u.Callback.ID, tr.T("access.denied"))
			return
		}
		a.send(ctx, log, Outgoing{ChatID: u.ChatID, Text: tr.T("access.denied")})
		return
	}

	sess := session.GetOrCreate(a.sessions, u.ChatID)
	if u.Callback != nil {
		a.handleCallback(ctx, log, sess, u.Callback)
	} else {
		a.handleText(ctx, log, sess, u.Text)
	}
	if err := a.sessions.Put(sess); err != nil {
		log.Warn("save session failed", zap.Error(err))
	}
}

func (a *Adapter) handleText(ctx context.Context, log *zap.Logger, sess *session.ChatSession, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if a.handleSlash(ctx, log, sess, text) {
		return
	}

	if _, isRun := orchestrator.ParseRun(text); !isRun {
		if err := a.transport.Typing(ctx, sess.ID); err != nil {
			log.Debug("typing indicator failed", zap.Error(err))
		}
	}
	res, err := a.engine.Respond(ctx, sess, text)
	if err != nil {
		log.Info("turn aborted", zap.Error(err))
		return
	}
	if res.Confirm != nil {
		a.askConfirmation(ctx, log, sess, res.Confirm)
		return
	}
	a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: res.Text, Markdown: true})
}

// askConfirmation 进入 pending：记录截止时间并发送 是/否 按钮
// askConfirmation enters the pending state. A newer request replaces any
// older one.
func (a *Adapter) askConfirmation(ctx context.Context, log *zap.Logger, sess *session.ChatSession, c *orchestrator.Confirmation) {
	tr := i18n.For(string(sess.Language))
	p := sess.SetPending(c.Command, c.Label, a.now(), a.ttl)
	log.Info("confirmation requested", zap.String("confirmation_id", p.ID), zap.String("command", c.Command), zap.String("label", c.Label))
	a.send(ctx, log, Outgoing{
		ChatID:   sess.ID,
		Text:     tr.T("confirm.prompt", strings.ReplaceAll(c.Command, "`", "'"), c.Label, int(a.ttl/time.Second)),
		Markdown: true,
		Buttons: [][]Button{{
			{Text: tr.T("confirm.yes"), Data: DataConfirmYes},
			{Text: tr.T("confirm.no"), Data: DataConfirmNo},
		}},
	})
}

func (a *Adapter) handleCallback(ctx context.Context, log *zap.Logger, sess *session.ChatSession, cb *Callback) {
	tr := i18n.For(string(sess.Language))
	switch {
	case strings.HasPrefix(cb.Data, langPrefix):
		lang, ok := session.ParseLanguage(strings.TrimPrefix(cb.Data, langPrefix))
		if !ok {
			a.answer(ctx, log, cb.ID, "")
			return
		}
		sess.Language = lang
		tr = i18n.For(string(lang))
		a.answer(ctx, log, cb.ID, lang.DisplayName())
		a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: tr.T("lang.set", lang.DisplayName())})

	case cb.Data == DataConfirmYes, cb.Data == DataConfirmNo:
		p, ok := sess.TakePending(a.now())
		if !ok {
			a.answer(ctx, log, cb.ID, tr.T("confirm.none"))
			return
		}
		log = log.With(zap.String("confirmation_id", p.ID), zap.String("command", p.Command))
		a.answer(ctx, log, cb.ID, "")
		if cb.Data == DataConfirmNo {
			log.Info("confirmation denied")
			a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: tr.T("confirm.cancelled", strings.ReplaceAll(p.Command, "`", "'")), Markdown: true})
			return
		}
		log.Info("confirmation approved")
		if err := a.transport.Typing(ctx, sess.ID); err != nil {
			log.Debug("typing indicator failed", zap.Error(err))
		}
		out := a.engine.RunConfirmed(ctx, sess, p.Command)
		a.send(ctx, log, Outgoing{ChatID: sess.ID, Text: out, Markdown: true})

	default:
		log.Debug("unknown callback", zap.String("data", cb.Data))
		a.answer(ctx, log, cb.ID, "")
	}
}

func (a *Adapter) send(ctx context.Context, log *zap.Logger, msg Outgoing) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	if err := a.transport.Send(ctx, msg); err != nil {
		log.Warn("send failed", zap.Error(err))
	}
}

func (a *Adapter) answer(ctx context.Context, log *zap.Logger, id, text string) {
	if id == "" {
		return
	}
	if err := a.transport.AnswerCallback(ctx, id, text); err != nil {
		log.Debug("answer callback failed", zap.Error(err))
	}
}

func (a *Adapter) permissionSet() permission.Set {
	if a.perms == nil {
		return permission.Set{}
	}
	return a.perms.Load()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FormatChatID renders a numeric chat id the way sessions key it.
func FormatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
