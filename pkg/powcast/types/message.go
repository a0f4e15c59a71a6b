package types

import (
	"errors"

	"github.com/goccy/go-json"
)

var (
	// Err returned when a payload decodes but a required field
	// is absent. The message must be dropped without state change.
	ErrMissingField = errors.New("payload is missing a required field")
)

// ClientID is the 16 bit random identity a node draws at startup.
type ClientID int

// VoteID is the 16 bit random ballot a node draws when entering
// the election phase.
type VoteID int

// TransactionID identifies one challenge on the ledger. Issued
// monotonically by the controller, starting at 1.
type TransactionID int

// Topics holds the five resolved topic names the protocol uses.
// All topics live under a common prefix, "sd" by default.
type Topics struct {
	Init      string
	Voting    string
	Challenge string
	Solution  string
	Result    string
}

// Resolve the topic names for the given prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Init:      prefix + "/init",
		Voting:    prefix + "/voting",
		Challenge: prefix + "/challenge",
		Solution:  prefix + "/solution",
		Result:    prefix + "/result",
	}
}

// Announcement of a node identity during the init phase.
type InitAnnounce struct {
	ClientID ClientID
}

// Ballot broadcast during the election phase. The pair is immutable,
// a node never announces two different VoteID values.
type Ballot struct {
	ClientID ClientID
	VoteID   VoteID
}

// ChallengeAnnounce is published by the controller to open one
// transaction for mining.
type ChallengeAnnounce struct {
	TransactionID TransactionID
	Challenge     int
}

// SolutionSubmit is a candidate solution raced to the controller
// by one miner.
type SolutionSubmit struct {
	ClientID      ClientID
	TransactionID TransactionID
	Solution      string
}

// ResultAnnounce is the authoritative verdict broadcast by the
// controller. Result is 1 when the solution was accepted, 0 when
// it was rejected.
type ResultAnnounce struct {
	ClientID      ClientID
	TransactionID TransactionID
	Solution      string
	Result        int
}

func Encode(message interface{}) ([]byte, error) {
	return json.Marshal(message)
}

// The parse helpers decode through a pointer envelope so that an
// absent required field can be told apart from a zero value, since
// 0 is a legal ClientID and a legal VoteID. Unknown fields are
// ignored, as the schema demands.

func ParseInitAnnounce(payload []byte) (InitAnnounce, error) {
	var raw struct {
		ClientID *ClientID
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return InitAnnounce{}, err
	}
	if raw.ClientID == nil {
		return InitAnnounce{}, ErrMissingField
	}
	return InitAnnounce{ClientID: *raw.ClientID}, nil
}

func ParseBallot(payload []byte) (Ballot, error) {
	var raw struct {
		ClientID *ClientID
		VoteID   *VoteID
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Ballot{}, err
	}
	if raw.ClientID == nil || raw.VoteID == nil {
		return Ballot{}, ErrMissingField
	}
	return Ballot{ClientID: *raw.ClientID, VoteID: *raw.VoteID}, nil
}

func ParseChallengeAnnounce(payload []byte) (ChallengeAnnounce, error) {
	var raw struct {
		TransactionID *TransactionID
		Challenge     *int
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ChallengeAnnounce{}, err
	}
	if raw.TransactionID == nil || raw.Challenge == nil {
		return ChallengeAnnounce{}, ErrMissingField
	}
	return ChallengeAnnounce{TransactionID: *raw.TransactionID, Challenge: *raw.Challenge}, nil
}

func ParseSolutionSubmit(payload []byte) (SolutionSubmit, error) {
	var raw struct {
		ClientID      *ClientID
		TransactionID *TransactionID
		Solution      *string
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return SolutionSubmit{}, err
	}
	if raw.ClientID == nil || raw.TransactionID == nil || raw.Solution == nil {
		return SolutionSubmit{}, ErrMissingField
	}
	return SolutionSubmit{
		ClientID:      *raw.ClientID,
		TransactionID: *raw.TransactionID,
		Solution:      *raw.Solution,
	}, nil
}

func ParseResultAnnounce(payload []byte) (ResultAnnounce, error) {
	var raw struct {
		ClientID      *ClientID
		TransactionID *TransactionID
		Solution      *string
		Result        *int
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ResultAnnounce{}, err
	}
	if raw.ClientID == nil || raw.TransactionID == nil || raw.Solution == nil || raw.Result == nil {
		return ResultAnnounce{}, ErrMissingField
	}
	return ResultAnnounce{
		ClientID:      *raw.ClientID,
		TransactionID: *raw.TransactionID,
		Solution:      *raw.Solution,
		Result:        *raw.Result,
	}, nil
}
