package sequence

import (
	"strconv"
	"strings"
)

// NoObservedUnit marks a sub-command whose output carries no visit identifier.
const NoObservedUnit int64 = -1

type SubCommand struct {
	Index        int    `json:"index"`
	CmdStr       string `json:"cmd_str"`
	Status       Status `json:"status"`
	Anomalies    string `json:"anomalies"`
	ReturnStr    string `json:"return_str"`
	ObservedUnit int64  `json:"observed_unit"`

	// experiments report every visit they took
	Visits []int64 `json:"visits,omitempty"`
}

func NewSubCommand(index int, cmdStr string, didFail int, returnStr string) (*SubCommand, error) {
	status, err := statusFromDidFail(didFail)
	if err != nil {
		return nil, err
	}
	sub := &SubCommand{
		Index:        index,
		CmdStr:       cmdStr,
		Status:       status,
		ReturnStr:    returnStr,
		ObservedUnit: DecodeObservedUnit(returnStr),
	}
	if status == StatusFailed {
		sub.Anomalies = returnStr
	}
	return sub, nil
}

// merge folds a later update for the same index into s.
// Terminal states never regress and an active sub-command is not demoted
// by a still-pending update.
func (s *SubCommand) merge(o *SubCommand) {
	if o.CmdStr != "" {
		s.CmdStr = o.CmdStr
	}
	if o.ReturnStr != "" {
		s.ReturnStr = o.ReturnStr
	}
	if o.ObservedUnit != NoObservedUnit {
		s.ObservedUnit = o.ObservedUnit
	}
	if len(o.Visits) > 0 {
		s.Visits = o.Visits
	}
	if o.Anomalies != "" {
		s.Anomalies = o.Anomalies
	}

	switch {
	case s.Status.IsTerminal():
	case s.Status == StatusActive && o.Status == StatusValid:
	default:
		s.Status = o.Status
	}
}

// DecodeObservedUnit extracts the visit identifier from a reply payload.
// It understands `fileids=<id>,...,<mask>` and `visit=<id>`; anything else
// yields NoObservedUnit.
func DecodeObservedUnit(returnStr string) int64 {
	if id, ok := decodeFileIDs(returnStr); ok {
		return id
	}
	if id, ok := decodeVisit(returnStr); ok {
		return id
	}
	return NoObservedUnit
}

// DecodeVisits reads an experiment visit list, `<id>;<id>;...`. A list
// with anything but visit ids yields nil.
func DecodeVisits(returnStr string) []int64 {
	var visits []int64
	for _, v := range strings.Split(returnStr, ";") {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return nil
		}
		visits = append(visits, id)
	}
	return visits
}

func decodeFileIDs(s string) (int64, bool) {
	_, rest, found := strings.Cut(s, "fileids=")
	if !found {
		return 0, false
	}
	rest = strings.TrimLeft(rest, `"'`)
	if end := strings.IndexAny(rest, "; \t\n\"'"); end >= 0 {
		rest = rest[:end]
	}
	parts := strings.Split(rest, ",")
	if len(parts) < 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func decodeVisit(s string) (int64, bool) {
	const token = "visit="
	for from := 0; ; {
		i := strings.Index(s[from:], token)
		if i < 0 {
			return 0, false
		}
		i += from
		from = i + len(token)
		if i > 0 && isWordByte(s[i-1]) {
			continue
		}
		end := from
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == from {
			continue
		}
		id, err := strconv.ParseInt(s[from:end], 10, 64)
		if err != nil {
			continue
		}
		return id, true
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
