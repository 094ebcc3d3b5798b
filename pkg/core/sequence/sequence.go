package sequence

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
)

// Unregistered is the id of a sequence the actor has not acknowledged yet.
const Unregistered int64 = -1

const timeoutAnomaly = "no reply within time limit"

// Info is the user supplied part of a sequence, what a script or the
// clipboard carries.
type Info struct {
	Name     string `json:"name" yaml:"name"`
	Comments string `json:"comments" yaml:"comments"`
	CmdStr   string `json:"cmd_str" yaml:"cmdStr"`
	SeqType  string `json:"seq_type" yaml:"seqtype,omitempty"`
}

// Sequence is one queued command line and its execution state.
// It is not safe for concurrent use; the scheduler loop owns it.
type Sequence struct {
	UUID        uuid.UUID
	ID          int64
	Name        string
	Comments    string
	CmdStr      string
	SeqType     string
	Status      Status
	SubCommands map[int]*SubCommand
	Anomalies   string
	ReturnStr   string

	experiment bool // registered through newExperiment
	onChange   func(*Sequence)
}

func New(info Info) *Sequence {
	return &Sequence{
		UUID:        uuid.NewV4(),
		ID:          Unregistered,
		Name:        info.Name,
		Comments:    info.Comments,
		CmdStr:      strings.TrimSpace(info.CmdStr),
		SeqType:     info.SeqType,
		Status:      StatusInit,
		SubCommands: make(map[int]*SubCommand),
	}
}

func (s *Sequence) Info() Info {
	return Info{Name: s.Name, Comments: s.Comments, CmdStr: s.CmdStr, SeqType: s.SeqType}
}

func (s *Sequence) IsValid() bool  { return s.Status == StatusValid }
func (s *Sequence) IsActive() bool { return s.Status == StatusActive }

func (s *Sequence) Registered() bool {
	return s.ID != Unregistered
}

func (s *Sequence) changed() {
	if s.onChange != nil {
		s.onChange(s)
	}
}

// FullCommand is the command line sent to the actor.
func (s *Sequence) FullCommand() string {
	parts := []string{s.CmdStr}
	if name := StripQuotes(s.Name); name != "" {
		parts = append(parts, fmt.Sprintf(`name="%s"`, name))
	}
	if comments := StripQuotes(s.Comments); comments != "" {
		parts = append(parts, fmt.Sprintf(`comments="%s"`, comments))
	}
	return strings.Join(parts, " ")
}

// Validate toggles scheduling eligibility. Only init and valid sequences
// can be toggled.
func (s *Sequence) Validate(valid bool) error {
	if s.Status != StatusInit && s.Status != StatusValid {
		return code.SequenceLockedErr.WithMsgf("sequence %s is %s", s.UUID, s.Status)
	}
	next := StatusInit
	if valid {
		if _, _, err := SplitCommand(s.CmdStr); err != nil {
			return err
		}
		next = StatusValid
	}
	if next != s.Status {
		s.Status = next
		s.changed()
	}
	return nil
}

// Activate hands the full command line to dispatch and marks the sequence
// active once dispatch accepted it. A dispatch error leaves it valid.
func (s *Sequence) Activate(dispatch func(actor, cmdStr string) error) error {
	if s.Status != StatusValid {
		return code.SequenceNotValidErr.WithMsgf("sequence %s is %s", s.UUID, s.Status)
	}
	if _, _, err := SplitCommand(s.CmdStr); err != nil {
		return err
	}
	actor, cmdStr, err := SplitCommand(s.FullCommand())
	if err != nil {
		return err
	}
	if err := dispatch(actor, cmdStr); err != nil {
		return err
	}
	s.Status = StatusActive
	s.changed()
	return nil
}

// Fail marks a valid or active sequence failed without a reply, e.g. when
// its command can not be dispatched at all.
func (s *Sequence) Fail(anomaly string) bool {
	if s.Status != StatusValid && s.Status != StatusActive {
		return false
	}
	s.fail(anomaly)
	s.changed()
	return true
}

func (s *Sequence) fail(anomaly string) {
	s.Status = StatusFailed
	if anomaly != "" {
		s.Anomalies = anomaly
	}
	for _, sub := range s.SubCommands {
		if sub.Status != StatusFinished {
			sub.Status = StatusFailed
		}
	}
}

// ApplyReply routes an actor reply. It reports whether the reply moved the
// sequence to a terminal state. Replies reaching a terminal sequence are
// ignored.
func (s *Sequence) ApplyReply(reply *Reply) (bool, error) {
	if s.Status.IsTerminal() {
		return false, nil
	}
	if s.Status != StatusActive {
		return false, code.InvalidReplyErr.WithMsgf("sequence %s is %s", s.UUID, s.Status)
	}

	if reply.Code.IsTerminal() {
		s.ReturnStr = reply.Keywords.Canonical(";")
		switch {
		case reply.Code.IsSuccess():
			s.Status = StatusFinished
		case reply.Code == CodeTimeout:
			s.fail(timeoutAnomaly)
		default:
			s.fail("")
		}
		s.changed()
		return true, nil
	}

	decoded, err := Decode(reply.Keywords)
	errs := []error{err}
	for _, d := range decoded {
		switch v := d.(type) {
		case *Registration:
			s.register(v.ID, v.SeqType, v.Name, v.Comments)
		case *ExperimentRegistration:
			s.registerExperiment(v)
		case *SubCommandUpdate:
			if s.Registered() && v.ParentID != s.ID {
				errs = append(errs, code.InvalidReplyErr.WithMsgf(
					"sub-command of %d routed to sequence %d", v.ParentID, s.ID))
				continue
			}
			errs = append(errs, s.UpdateSubCommand(v.Index, v.CmdStr, v.DidFail, v.ReturnStr))
		}
	}
	return false, errors.Join(errs...)
}

func (s *Sequence) register(id int64, seqType, name, comments string) {
	s.ID = id
	if seqType != "" {
		s.SeqType = seqType
	}
	if s.Name == "" {
		s.Name = name
	}
	if s.Comments == "" {
		s.Comments = comments
	}
	s.changed()
}

func (s *Sequence) registerExperiment(exp *ExperimentRegistration) {
	for i, cmdStr := range exp.CmdList {
		if _, ok := s.SubCommands[i]; ok {
			continue
		}
		s.SubCommands[i] = &SubCommand{Index: i, CmdStr: cmdStr, Status: StatusValid, ObservedUnit: NoObservedUnit}
	}
	s.experiment = true
	s.promote()
	s.register(exp.ID, exp.SeqType, exp.Name, exp.Comments)
}

// UpdateSubCommand creates or merges the sub-command at index, then
// promotes the first valid sub-command if none is active.
func (s *Sequence) UpdateSubCommand(index int, cmdStr string, didFail int, returnStr string) error {
	sub, err := NewSubCommand(index, cmdStr, didFail, returnStr)
	if err != nil {
		return err
	}
	if s.experiment && sub.Status == StatusFinished {
		sub.Visits = DecodeVisits(returnStr)
	}
	if old, ok := s.SubCommands[index]; ok {
		old.merge(sub)
	} else {
		s.SubCommands[index] = sub
	}
	s.promote()
	s.changed()
	return nil
}

func (s *Sequence) promote() {
	subs := s.SubCommandList()
	for _, sub := range subs {
		if sub.Status == StatusActive {
			return
		}
	}
	for _, sub := range subs {
		if sub.Status == StatusValid {
			sub.Status = StatusActive
			return
		}
	}
}

// SubCommandList returns the sub-commands in index order.
func (s *Sequence) SubCommandList() []*SubCommand {
	subs := make([]*SubCommand, 0, len(s.SubCommands))
	for _, sub := range s.SubCommands {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Index < subs[j].Index })
	return subs
}

// ObservedUnits lists the visits produced so far, in sub-command order.
func (s *Sequence) ObservedUnits() []int64 {
	var units []int64
	for _, sub := range s.SubCommandList() {
		if sub.ObservedUnit != NoObservedUnit {
			units = append(units, sub.ObservedUnit)
		}
		units = append(units, sub.Visits...)
	}
	return units
}

func (s *Sequence) VisitStart() int64 {
	units := s.ObservedUnits()
	if len(units) == 0 {
		return NoObservedUnit
	}
	start := units[0]
	for _, u := range units[1:] {
		start = min(start, u)
	}
	return start
}

func (s *Sequence) VisitEnd() int64 {
	units := s.ObservedUnits()
	if len(units) == 0 {
		return NoObservedUnit
	}
	end := units[0]
	for _, u := range units[1:] {
		end = max(end, u)
	}
	return end
}

// View is a detached copy safe to hand to other goroutines.
type View struct {
	UUID        uuid.UUID    `json:"uuid"`
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Comments    string       `json:"comments"`
	CmdStr      string       `json:"cmd_str"`
	SeqType     string       `json:"seq_type"`
	Status      Status       `json:"status"`
	Anomalies   string       `json:"anomalies"`
	ReturnStr   string       `json:"return_str"`
	SubCommands []SubCommand `json:"sub_commands"`
	VisitStart  int64        `json:"visit_start"`
	VisitEnd    int64        `json:"visit_end"`
}

func (s *Sequence) View() *View {
	subs := make([]SubCommand, 0, len(s.SubCommands))
	for _, sub := range s.SubCommandList() {
		subs = append(subs, *sub)
	}
	return &View{
		UUID:        s.UUID,
		ID:          s.ID,
		Name:        s.Name,
		Comments:    s.Comments,
		CmdStr:      s.CmdStr,
		SeqType:     s.SeqType,
		Status:      s.Status,
		Anomalies:   s.Anomalies,
		ReturnStr:   s.ReturnStr,
		SubCommands: subs,
		VisitStart:  s.VisitStart(),
		VisitEnd:    s.VisitEnd(),
	}
}
