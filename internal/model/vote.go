package model

import "time"

// LogName identifies one of the two vote ledgers.
type LogName string

const (
	LogNoMotif      LogName = "nomotifs"
	LogUnknownMotif LogName = "unknownmotifs"
)

// Valid reports whether n names a known ledger.
func (n LogName) Valid() bool {
	return n == LogNoMotif || n == LogUnknownMotif
}

// VoteTimeLayout is the timestamp layout stored in ledgers.
const VoteTimeLayout = "2006-01-02T15:04:05"

// Vote is a single vote record. Anonymous voters have an empty User.
type Vote struct {
	User string `json:"user"`
	Data string `json:"data"`
}

// NewVote stamps a vote for user at t.
func NewVote(user string, t time.Time) Vote {
	return Vote{User: user, Data: t.Format(VoteTimeLayout)}
}

// Votes maps a subject id to its votes in insertion order.
type Votes map[string][]Vote
