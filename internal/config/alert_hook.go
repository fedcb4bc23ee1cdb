package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

const alertMaxLength = 3500

// AlertSender delivers an alert text to the bot owner.
type AlertSender func(text string) error

// AlertHook forwards error level entries to the owner without blocking the caller.
type AlertHook struct {
	send  AlertSender
	queue chan string
}

func NewAlertHook(send AlertSender, buffer int) *AlertHook {
	if buffer <= 0 {
		buffer = 16
	}
	h := &AlertHook{
		send:  send,
		queue: make(chan string, buffer),
	}
	go h.loop()
	return h
}

func (h *AlertHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *AlertHook) Fire(entry *log.Entry) error {
	select {
	case h.queue <- FormatAlert(entry):
	default:
	}
	return nil
}

func (h *AlertHook) loop() {
	for text := range h.queue {
		_ = h.send(text)
	}
}

func FormatAlert(entry *log.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", strings.ToUpper(entry.Level.String()), entry.Message)
	for k, v := range entry.Data {
		fmt.Fprintf(&b, "\n%s=%v", k, v)
	}
	text := b.String()
	if len(text) > alertMaxLength {
		text = text[:alertMaxLength] + "..."
	}
	return text
}
