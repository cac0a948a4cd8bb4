package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/monitoring"
)

// SafeGo runs fn in a goroutine and logs instead of crashing on panic
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// SafeGoWithPanic runs fn in a goroutine and exits the process if it panics
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, r, string(debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}

// Recover is meant to be deferred; it swallows a panic after logging it
func Recover(name string) {
	if r := recover(); r != nil {
		monitoring.IncreasePanicCount()
		logx.Error("PANIC", "Panic in: ", name, r, string(debug.Stack()))
	}
}
