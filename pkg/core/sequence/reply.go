package sequence

import (
	"errors"
	"strconv"
	"strings"

	"github.com/scienceol/seqpanel/pkg/common/code"
)

type Code string

const (
	CodeFinished Code = ":"
	CodeFailed   Code = "F"
	CodeFatal    Code = "!"
	CodeTimeout  Code = "T"
	CodeInform   Code = "I"
	CodeWarning  Code = "W"
	CodeDebug    Code = "D"
	CodeQueued   Code = ">"
)

func (c Code) IsTerminal() bool {
	switch c {
	case CodeFinished, CodeFailed, CodeFatal, CodeTimeout:
		return true
	}
	return false
}

func (c Code) IsSuccess() bool {
	return c == CodeFinished
}

type Keyword struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (k Keyword) String() string {
	return k.Name + "=" + strings.Join(k.Values, ",")
}

type Keywords []Keyword

func (k Keywords) Get(name string) (Keyword, bool) {
	for _, kw := range k {
		if kw.Name == name {
			return kw, true
		}
	}
	return Keyword{}, false
}

// Canonical flattens the keywords in arrival order.
func (k Keywords) Canonical(delim string) string {
	parts := make([]string, 0, len(k))
	for _, kw := range k {
		parts = append(parts, kw.String())
	}
	return strings.Join(parts, delim)
}

type Reply struct {
	Actor    string   `json:"actor"`
	Code     Code     `json:"code"`
	Keywords Keywords `json:"keywords"`
}

// Keywords understood by the console.
const (
	KeySequence      = "sps_sequence"
	KeyExperiment    = "experiment"
	KeyNewExperiment = "newExperiment"
	KeySubCommand    = "subCommand"
)

// Decoded is one of Registration, ExperimentRegistration, SubCommandUpdate
// or Unrecognized.
type Decoded interface {
	keyword() string
}

type Registration struct {
	ID       int64
	SeqType  string
	CmdStr   string
	Name     string
	Comments string
	DBName   string
}

type ExperimentRegistration struct {
	ID       int64
	SeqType  string
	Name     string
	Comments string
	CmdList  []string
}

type SubCommandUpdate struct {
	ParentID  int64
	Index     int
	CmdStr    string
	DidFail   int
	ReturnStr string
}

type Unrecognized struct {
	Keyword Keyword
}

func (*Registration) keyword() string           { return KeySequence }
func (*ExperimentRegistration) keyword() string { return KeyNewExperiment }
func (*SubCommandUpdate) keyword() string       { return KeySubCommand }
func (u *Unrecognized) keyword() string         { return u.Keyword.Name }

// Decode turns reply keywords into typed updates. Malformed recognised
// keywords are reported in the returned error and skipped; the rest still
// decode.
func Decode(kws Keywords) ([]Decoded, error) {
	res := make([]Decoded, 0, len(kws))
	var errs []error
	for _, kw := range kws {
		var (
			d   Decoded
			err error
		)
		switch kw.Name {
		case KeySequence:
			d, err = decodeSequence(kw.Values)
		case KeyExperiment:
			d, err = decodeExperiment(kw.Values)
		case KeyNewExperiment:
			d, err = decodeNewExperiment(kw.Values)
		case KeySubCommand:
			d, err = decodeSubCommand(kw.Values)
		default:
			d = &Unrecognized{Keyword: kw}
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res = append(res, d)
	}
	return res, errors.Join(errs...)
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	}
	return v
}

func values(vals []string, name string, min int) ([]string, error) {
	if len(vals) < min {
		return nil, code.InvalidReplyErr.WithMsgf("%s needs %d values, got %d", name, min, len(vals))
	}
	res := make([]string, len(vals))
	for i, v := range vals {
		res[i] = unquote(v)
	}
	return res, nil
}

func parseID(name, v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, code.InvalidReplyErr.WithMsgf("%s id %q: %s", name, v, err)
	}
	return id, nil
}

// sps_sequence=id,seqtype,cmdStr,name,comments
func decodeSequence(raw []string) (Decoded, error) {
	vals, err := values(raw, KeySequence, 5)
	if err != nil {
		return nil, err
	}
	id, err := parseID(KeySequence, vals[0])
	if err != nil {
		return nil, err
	}
	return &Registration{ID: id, SeqType: vals[1], CmdStr: vals[2], Name: vals[3], Comments: vals[4]}, nil
}

// experiment=dbname,id,seqtype,cmdStr,name,comments
func decodeExperiment(raw []string) (Decoded, error) {
	vals, err := values(raw, KeyExperiment, 6)
	if err != nil {
		return nil, err
	}
	id, err := parseID(KeyExperiment, vals[1])
	if err != nil {
		return nil, err
	}
	return &Registration{
		DBName: vals[0], ID: id, SeqType: vals[2], CmdStr: vals[3], Name: vals[4], Comments: vals[5],
	}, nil
}

// newExperiment=id,exptype,name,comments,cmd1;cmd2;...
func decodeNewExperiment(raw []string) (Decoded, error) {
	vals, err := values(raw, KeyNewExperiment, 5)
	if err != nil {
		return nil, err
	}
	id, err := parseID(KeyNewExperiment, vals[0])
	if err != nil {
		return nil, err
	}
	var cmdList []string
	for _, c := range strings.Split(strings.Join(vals[4:], ","), ";") {
		if c = strings.TrimSpace(c); c != "" {
			cmdList = append(cmdList, c)
		}
	}
	return &ExperimentRegistration{ID: id, SeqType: vals[1], Name: vals[2], Comments: vals[3], CmdList: cmdList}, nil
}

// subCommand=parentId,index[,cmdStr],didFail[,returnStr]
// Experiments reply parentId,index,didFail[,visit;visit...], told apart by
// the didFail value sitting right after the index.
func decodeSubCommand(raw []string) (Decoded, error) {
	vals, err := values(raw, KeySubCommand, 3)
	if err != nil {
		return nil, err
	}
	parentID, err := parseID(KeySubCommand, vals[0])
	if err != nil {
		return nil, err
	}
	index, err := strconv.Atoi(vals[1])
	if err != nil {
		return nil, code.InvalidReplyErr.WithMsgf("subCommand index %q: %s", vals[1], err)
	}

	update := &SubCommandUpdate{ParentID: parentID, Index: index}
	var didFail string
	switch {
	case len(vals) == 3:
		didFail = vals[2]
	case isDidFail(vals[3]) && !isDidFail(vals[2]):
		update.CmdStr, didFail = vals[2], vals[3]
		update.ReturnStr = strings.Join(vals[4:], ",")
	default:
		// payloads like fileids=1,0,3 arrive split on commas
		didFail = vals[2]
		update.ReturnStr = strings.Join(vals[3:], ",")
	}
	if update.DidFail, err = strconv.Atoi(didFail); err != nil {
		return nil, code.InvalidReplyErr.WithMsgf("subCommand didFail %q: %s", didFail, err)
	}
	return update, nil
}

func isDidFail(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n >= DidFailPending && n <= DidFailFailure
}
