package sequence

import (
	"strings"

	"github.com/scienceol/seqpanel/pkg/common/code"
)

// SplitCommand splits a full command line into the actor name and the
// command sent to it.
func SplitCommand(full string) (actor string, cmdStr string, err error) {
	actor, cmdStr, found := strings.Cut(strings.TrimSpace(full), " ")
	cmdStr = strings.TrimSpace(cmdStr)
	if !found || actor == "" || cmdStr == "" {
		return "", "", code.MalformedCommandErr.WithMsgf("cannot split %q into actor and command", full)
	}
	return actor, cmdStr, nil
}

// StripQuotes makes free text safe to embed between double quotes.
func StripQuotes(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, "'"))
}

// StripField removes `field<value>` from a command line, value being either
// double quoted or running to the next space.
func StripField(cmdStr, field string) string {
	start := strings.Index(cmdStr, field)
	if start < 0 {
		return cmdStr
	}
	end := start + len(field)
	if end < len(cmdStr) && cmdStr[end] == '"' {
		if closing := strings.IndexByte(cmdStr[end+1:], '"'); closing >= 0 {
			end += closing + 2
		} else {
			end = len(cmdStr)
		}
	} else if sp := strings.IndexByte(cmdStr[end:], ' '); sp >= 0 {
		end += sp
	} else {
		end = len(cmdStr)
	}
	return strings.Join(strings.Fields(cmdStr[:start]+cmdStr[end:]), " ")
}

// Reformat turns a command recorded by the actor back into a console
// command line: fields the console adds itself are dropped and the actor
// name is restored.
func Reformat(recorded string) string {
	if strings.Contains(recorded, "iic") {
		return recorded
	}
	cmdStr := StripField(StripField(recorded, "name="), "comments=")
	return "iic " + strings.TrimSpace(cmdStr)
}
