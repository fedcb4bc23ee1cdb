package infra

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// RestartDelay is the pause before a panicked job is started again.
var RestartDelay = 5 * time.Second

// GoRecoverable runs f and restarts it after a panic. A negative maxPanics
// means unlimited restarts; once the budget is spent the process exits.
func GoRecoverable(maxPanics int, id string, f func()) {
	entry := log.WithFields(log.Fields{"object": "Recoverable", "job": id})
	defer func() {
		if err := recover(); err != nil {
			entry.WithField("panic", fmt.Sprint(err)).Errorf("job panicked at %s", identifyPanic())
			if maxPanics == 0 {
				entry.Fatal("panics limit exceeded, exiting")
				return
			}
			if maxPanics > 0 {
				maxPanics--
			}
			entry.WithField("panics_left", maxPanics).Debug("restarting job")
			time.Sleep(RestartDelay)
			go GoRecoverable(maxPanics, id, f)
		}
	}()
	f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
