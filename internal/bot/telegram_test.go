package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestEventFromUpdate(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 9,
		Message: &tgbotapi.Message{
			MessageID: 77,
			Date:      1704196800,
			From:      &tgbotapi.User{ID: 3, FirstName: "Bob", LastName: "Builder"},
			Chat:      &tgbotapi.Chat{ID: testChat},
			Text:      "-50 USD 1",
			ReplyToMessage: &tgbotapi.Message{
				MessageID: 70,
				From:      &tgbotapi.User{ID: 5, UserName: "alice"},
			},
		},
	}

	ev, ok := EventFromUpdate(update)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.UpdateID != 9 || ev.MessageID != 77 || ev.ChatID != testChat || ev.Text != "-50 USD 1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Actor != (Participant{ID: 3, Name: "Bob Builder"}) {
		t.Fatalf("unexpected actor %+v", ev.Actor)
	}
	if ev.ReplyTo == nil || *ev.ReplyTo != (Participant{ID: 5, Name: "alice"}) || ev.ReplyMessageID != 70 {
		t.Fatalf("unexpected reply target %+v / %d", ev.ReplyTo, ev.ReplyMessageID)
	}
}

func TestEventFromUpdateSkipsNonText(t *testing.T) {
	skipped := []tgbotapi.Update{
		{},
		{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, From: &tgbotapi.User{ID: 1}}},
		{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "+1"}},
	}
	for i, u := range skipped {
		if _, ok := EventFromUpdate(u); ok {
			t.Fatalf("update %d should be skipped", i)
		}
	}
}
