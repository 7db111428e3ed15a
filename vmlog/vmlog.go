// Package vmlog wires the runtime's structured logging onto
// github.com/tliron/commonlog, the logging library the example corpus
// uses for its own server and CLI components.
package vmlog

import (
	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/flan-lang/flanvm/vm"
)

const loggerName = "flanvm"

// Configure installs commonlog's simple backend at the given verbosity
// ("debug", "info", "warning", "error"; anything else is treated as
// "warning") and returns a logger scoped to the runtime.
func Configure(level string) commonlog.Logger {
	commonlog.SetMaxLevel(levelOf(level))
	return commonlog.GetLogger(loggerName)
}

func levelOf(level string) commonlog.Level {
	switch level {
	case "debug":
		return commonlog.Debug
	case "info":
		return commonlog.Info
	case "error":
		return commonlog.Error
	default:
		return commonlog.Warning
	}
}

// HookHeap installs a GC collection-pass logger on h, rendering byte
// counts with humanize so a log line reads "nursery 8.4 MB -> 0 B"
// rather than a raw integer (spec §6, ambient GC diagnostics).
func HookHeap(log commonlog.Logger, h *vm.Heap) {
	h.SetCollectHook(func(before, after vm.HeapStats) {
		log.Debugf(
			"gc pass %d: nursery %s -> %s, retirement %s -> %s, promoted %d",
			after.Collections,
			humanize.Bytes(before.NurseryBytes), humanize.Bytes(after.NurseryBytes),
			humanize.Bytes(before.RetirementBytes), humanize.Bytes(after.RetirementBytes),
			after.Promotions-before.Promotions,
		)
	})
}
