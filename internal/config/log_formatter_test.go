package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestNbFormatterPlain(t *testing.T) {
	t.Parallel()

	entry := log.NewEntry(log.New())
	entry.Time = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entry.Level = log.WarnLevel
	entry.Message = "line one\nline two"
	entry.Data = log.Fields{
		"chat_id": int64(-100),
		"error":   errors.New("boom"),
	}

	out, err := (&NbFormatter{Plain: true}).Format(entry)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	line := string(out)

	for _, want := range []string{
		"level=WARN",
		"ts=2024-01-02 03:04:05.000",
		`chat_id=-100 error="boom"`,
		`msg="line one\nline two"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
	if strings.Count(line, "\n") != 1 || !strings.HasSuffix(line, "\n") {
		t.Fatalf("output must be a single line: %q", line)
	}
}
