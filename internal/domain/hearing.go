package domain

import (
	"encoding/json"
	"time"
)

// HearingStatus is active until a judge closes the hearing; closed is terminal.
type HearingStatus string

const (
	HearingActive HearingStatus = "active"
	HearingClosed HearingStatus = "closed"
)

// Agreement is a witness's answer to a hearing question.
type Agreement string

const (
	AgreementAgree    Agreement = "agree"
	AgreementDisagree Agreement = "disagree"
)

func (a Agreement) IsValid() bool { return a == AgreementAgree || a == AgreementDisagree }

// Response is one witness's answer within a hearing.
type Response struct {
	WitnessID   string    `json:"witness_id"`
	WitnessName string    `json:"witness_name"`
	Agreement   Agreement `json:"agreement"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Responses holds at most one response per witness. Iteration order is the
// order in which each witness first responded; a later answer from the same
// witness replaces the earlier one in place.
type Responses struct {
	order     []string
	byWitness map[string]Response
}

// NewResponses builds a collection, letting later duplicates supersede earlier ones.
func NewResponses(items ...Response) Responses {
	var rs Responses
	for _, r := range items {
		rs.Upsert(r)
	}
	return rs
}

// Upsert stores r and reports whether it replaced an earlier response.
func (rs *Responses) Upsert(r Response) bool {
	if rs.byWitness == nil {
		rs.byWitness = make(map[string]Response)
	}
	_, replaced := rs.byWitness[r.WitnessID]
	if !replaced {
		rs.order = append(rs.order, r.WitnessID)
	}
	rs.byWitness[r.WitnessID] = r
	return replaced
}

// Get returns the response of one witness.
func (rs Responses) Get(witnessID string) (Response, bool) {
	r, ok := rs.byWitness[witnessID]
	return r, ok
}

func (rs Responses) Len() int { return len(rs.order) }

// List returns responses in display order.
func (rs Responses) List() []Response {
	out := make([]Response, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.byWitness[id])
	}
	return out
}

// Clone returns an independent copy.
func (rs Responses) Clone() Responses {
	return NewResponses(rs.List()...)
}

func (rs Responses) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.List())
}

func (rs *Responses) UnmarshalJSON(data []byte) error {
	var items []Response
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*rs = NewResponses(items...)
	return nil
}

// Hearing collects agree/disagree testimony from named witnesses on one incident.
type Hearing struct {
	ID         string        `json:"id"`
	IncidentID string        `json:"incident_id"`
	CreatedBy  string        `json:"created_by"`
	WitnessIDs []string      `json:"witness_ids"`
	Question   string        `json:"question"`
	Status     HearingStatus `json:"status"`
	Responses  Responses     `json:"responses"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	ClosedAt   *time.Time    `json:"closed_at,omitempty"`
}

// HasWitness reports whether id was named on the hearing.
func (h Hearing) HasWitness(id string) bool {
	for _, w := range h.WitnessIDs {
		if w == id {
			return true
		}
	}
	return false
}

// StatementStatus tracks whether a witness has written their account yet.
type StatementStatus string

const (
	StatementPending   StatementStatus = "pending"
	StatementSubmitted StatementStatus = "submitted"
)

// WitnessStatement is a free-text account by one witness on one incident,
// optionally annotated by a judge.
type WitnessStatement struct {
	ID           string          `json:"id"`
	IncidentID   string          `json:"incident_id"`
	WitnessID    string          `json:"witness_id"`
	Statement    string          `json:"statement,omitempty"`
	Status       StatementStatus `json:"statement_status"`
	JudgeComment string          `json:"judge_comment,omitempty"`
	JudgeRequest string          `json:"judge_request,omitempty"`
	SubmittedAt  *time.Time      `json:"submitted_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
