package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	kit "remindbot/internal/transport"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"short", "Reminder: stretch", 10 * 1000, []string{"Reminder: stretch"}},
		{"empty", "", 10, []string{""}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"newline preferred", "aaa\nbbbbbb", 8, []string{"aaa", "bbbbbb"}},
		{"runes not bytes", "ééééé", 2, []string{"éé", "éé", "é"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitTelegramText(tc.in, tc.limit)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
				t.Fatalf("split = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSplitTelegramTextRespectsLimit(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("line of text\n", 1000)
	for _, chunk := range splitTelegramText(in, telegramTextLimit) {
		if n := utf8.RuneCountInString(chunk); n > telegramTextLimit || n == 0 {
			t.Fatalf("chunk length %d", n)
		}
	}
}

func TestMessageFromTele(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:       5,
		Chat:     &tele.Chat{ID: -100},
		Sender:   &tele.User{ID: 7, Username: "alice"},
		ThreadID: 3,
		Text:     "/remindme 10m tea",
	}
	got := messageFromTele(m)
	want := kit.Message{ID: 5, ChatID: -100, ThreadID: 3, FromID: 7, FromUsername: "alice", Text: "/remindme 10m tea"}
	if *got != want {
		t.Fatalf("message = %+v, want %+v", *got, want)
	}

	// Channel posts have no sender.
	if got := messageFromTele(&tele.Message{Chat: &tele.Chat{ID: 1}, Text: "x"}); got.FromID != 0 {
		t.Fatalf("FromID = %d", got.FromID)
	}
}

func TestMenuHashChangesWithContent(t *testing.T) {
	t.Parallel()
	a := []kit.BotCommand{{Command: "start", Description: "Start"}}
	b := []kit.BotCommand{{Command: "start", Description: "Begin"}}
	if menuHash(a) == menuHash(b) {
		t.Fatal("different menus hash equal")
	}
	if menuHash(a) != menuHash([]kit.BotCommand{{Command: "start", Description: "Start"}}) {
		t.Fatal("hash not stable")
	}
}
