package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	tlog "tally/internal/log"
)

const DefaultWorkers = 8

// Telegram polls the Bot API and feeds messages to a Handler. Updates are
// processed concurrently, at most workers at a time.
type Telegram struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	workers int64
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

func NewTelegram(token string, handler *Handler, workers int) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	t := &Telegram{
		api:     api,
		handler: handler,
		workers: int64(workers),
		sem:     semaphore.NewWeighted(int64(workers)),
		logger:  slog.Default().With(tlog.FieldComponent, tlog.ComponentBot),
	}
	t.logger.Info("Telegram bot authorized", "username", api.Self.UserName, "workers", workers)
	return t, nil
}

// Run polls until ctx is cancelled, then waits for in-flight updates.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return t.drain()
		case update, ok := <-updates:
			if !ok {
				return t.drain()
			}
			ev, ok := EventFromUpdate(update)
			if !ok {
				continue
			}
			if err := t.sem.Acquire(ctx, 1); err != nil {
				return t.drain()
			}
			go func() {
				defer t.sem.Release(1)
				t.process(ctx, ev)
			}()
		}
	}
}

func (t *Telegram) drain() error {
	// Acquiring every slot means no handler is still running.
	if err := t.sem.Acquire(context.Background(), t.workers); err != nil {
		return err
	}
	t.sem.Release(t.workers)
	t.logger.Info("Telegram polling stopped")
	return nil
}

func (t *Telegram) process(ctx context.Context, ev Event) {
	logger := tlog.FromContext(ctx).
		WithComponent(tlog.ComponentBot).
		With(tlog.FieldCorrelationID, uuid.NewString(), tlog.FieldUpdateID, ev.UpdateID)
	ctx = tlog.IntoContext(ctx, logger)

	reply := t.handler.Handle(ctx, ev)
	if reply == nil {
		return
	}
	if err := t.Send(ctx, *reply); err != nil {
		logger.ErrorContext(ctx, "Failed to send reply",
			tlog.FieldChatID, ev.ChatID,
			tlog.FieldError, err)
	}
}

// Send delivers r as a text message or, when it carries a document, as a file.
func (t *Telegram) Send(_ context.Context, r Reply) error {
	var msg tgbotapi.Chattable
	if r.Document != nil {
		doc := tgbotapi.NewDocument(r.ChatID, tgbotapi.FileBytes{Name: r.Document.Name, Bytes: r.Document.Data})
		doc.Caption = r.Text
		doc.ReplyToMessageID = int(r.ReplyTo)
		msg = doc
	} else {
		text := tgbotapi.NewMessage(r.ChatID, r.Text)
		text.ReplyToMessageID = int(r.ReplyTo)
		text.DisableWebPagePreview = true
		msg = text
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", r.ChatID, err)
	}
	return nil
}

// EventFromUpdate converts a Bot API update. Only text messages from users
// are relevant.
func EventFromUpdate(update tgbotapi.Update) (Event, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return Event{}, false
	}
	ev := Event{
		UpdateID:  update.UpdateID,
		MessageID: int64(msg.MessageID),
		ChatID:    msg.Chat.ID,
		Actor:     participant(msg.From),
		Text:      msg.Text,
	}
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		p := participant(reply.From)
		ev.ReplyTo = &p
		ev.ReplyMessageID = int64(reply.MessageID)
	}
	return ev, true
}

func participant(u *tgbotapi.User) Participant {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return Participant{ID: u.ID, Name: name}
}
