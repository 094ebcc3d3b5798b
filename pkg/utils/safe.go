package utils

import (
	"fmt"
	"runtime/debug"
)

// SafelyGo runs fn in a goroutine and hands any panic to onErr.
func SafelyGo(fn func(), onErr func(err error)) {
	go func() {
		if err := SafelyRun(fn); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

func SafelyRun(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
	return nil
}
