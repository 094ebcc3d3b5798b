package utils

import (
	"fmt"
	"time"
)

const ConsoleHeartTime = 5 * time.Second

func ConsoleLockName(console string) string {
	return fmt.Sprintf("seqpanel:console:lock:%s", console)
}

func ClipboardName(console, operator string) string {
	return fmt.Sprintf("seqpanel:console:clipboard:%s:%s", console, operator)
}

func ActorHeartName(console string) string {
	return fmt.Sprintf("seqpanel:console:actor:%s", console)
}
