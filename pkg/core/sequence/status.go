package sequence

import "github.com/scienceol/seqpanel/pkg/common/code"

type Status string

const (
	StatusInit     Status = "init"
	StatusValid    Status = "valid"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// didFail values carried by sub-command replies
const (
	DidFailPending = -1
	DidFailSuccess = 0
	DidFailFailure = 1
)

func statusFromDidFail(didFail int) (Status, error) {
	switch didFail {
	case DidFailPending:
		return StatusValid, nil
	case DidFailSuccess:
		return StatusFinished, nil
	case DidFailFailure:
		return StatusFailed, nil
	}
	return "", code.InvalidReplyErr.WithMsgf("unknown didFail value: %d", didFail)
}
