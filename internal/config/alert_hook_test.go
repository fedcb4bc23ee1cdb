package config

import (
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestAlertHookForwardsErrors(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	hook := NewAlertHook(func(text string) error {
		got <- text
		return nil
	}, 1)

	logger := log.New()
	logger.AddHook(hook)
	logger.WithField("chat_id", 7).Error("delete failed")

	select {
	case text := <-got:
		if !strings.Contains(text, "ERROR: delete failed") || !strings.Contains(text, "chat_id=7") {
			t.Fatalf("unexpected alert: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("alert was not delivered")
	}
}

func TestFormatAlertTruncates(t *testing.T) {
	t.Parallel()

	entry := log.NewEntry(log.New())
	entry.Level = log.ErrorLevel
	entry.Message = strings.Repeat("x", alertMaxLength*2)

	text := FormatAlert(entry)
	if len(text) != alertMaxLength+3 {
		t.Fatalf("unexpected length %d", len(text))
	}
}
