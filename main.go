package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/simplewallet/cmd"
	"github.com/mezonai/simplewallet/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("SIMPLEWALLET CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
