package models

import (
	"strconv"
	"time"
)

// Flow selector constants. Question 5 asks who is applying; its answer decides
// which of the two parallel paths the rest of the questionnaire follows.
const (
	FlowSelectorQuestionID = 5
	FlowAnswerJustMe       = "just_me"
	FlowAnswerCoSigner     = "co_signer"
)

// ResponseMap maps a question id (canonical string form) to its answer value.
// Scalar answers are strings (a selected option value); structured answers are
// records keyed by sub-field name, possibly containing a nested "items" list.
// All keys are strings: callers pass numeric ids through Get/Set which
// normalize, so equality is never ambiguous between "11" and 11.
type ResponseMap map[string]interface{}

// Get returns the answer for a question id, if present.
func (r ResponseMap) Get(questionID int) (interface{}, bool) {
	v, ok := r[strconv.Itoa(questionID)]
	return v, ok
}

// Set overwrites the whole answer for a question id. Setting a structured
// answer replaces the entire record; merging prior fields is the caller's job.
func (r ResponseMap) Set(questionID int, value interface{}) {
	r[strconv.Itoa(questionID)] = value
}

// Clone returns a shallow copy of the map. Record values are copied one level
// deep so that field-level edits on the copy do not leak into the original.
func (r ResponseMap) Clone() ResponseMap {
	out := make(ResponseMap, len(r))
	for k, v := range r {
		if rec, ok := v.(map[string]interface{}); ok {
			recCopy := make(map[string]interface{}, len(rec))
			for fk, fv := range rec {
				recCopy[fk] = fv
			}
			out[k] = recCopy
			continue
		}
		out[k] = v
	}
	return out
}

// ScalarAnswer extracts a plain scalar answer value. Branch maps only ever
// match scalar answers, so numeric values are normalized to their string form.
func ScalarAnswer(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

// RecordAnswer extracts a structured (record) answer value.
func RecordAnswer(v interface{}) (map[string]interface{}, bool) {
	rec, ok := v.(map[string]interface{})
	return rec, ok
}

// RecordField reads a string field out of an answer record. Missing fields and
// non-record answers yield the empty string.
func RecordField(v interface{}, key string) string {
	rec, ok := RecordAnswer(v)
	if !ok {
		return ""
	}
	s, _ := rec[key].(string)
	return s
}

// IntSlice is an []int stored as a JSON column.
type IntSlice []int

// Contains reports whether the slice holds the given id.
func (s IntSlice) Contains(id int) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// ContactBlock is the co-signer contact summary shipped alongside the raw
// response map on every snapshot save.
type ContactBlock struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// SnapshotSummary holds the pre-reduced fields the backend schema expects next
// to the raw answers. They are pure derivations of the response map.
type SnapshotSummary struct {
	EmploymentStatus string        `json:"employmentStatus"`
	OwnOtherProperty string        `json:"ownOtherProperty"`
	CoSignerContact  *ContactBlock `json:"coSignerContact,omitempty"`
}

// QuestionnaireSession is an applicant's questionnaire state: their answers,
// the ordered history supporting "go back", the visited set feeding progress,
// and the completion flag. One row per applicant; saves are full-snapshot
// overwrites so out-of-order save completion is harmless.
type QuestionnaireSession struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ApplicantID string `json:"applicant_id" gorm:"uniqueIndex"`

	Responses         ResponseMap `json:"responses" gorm:"serializer:json"`
	VisitedQuestions  IntSlice    `json:"visited_questions" gorm:"serializer:json"`
	QuestionHistory   IntSlice    `json:"question_history" gorm:"serializer:json"`
	CurrentQuestionID int         `json:"current_question_id"`

	// IsCompleted flips permanently once the terminal question is reached and
	// submission succeeds. There is no un-complete.
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	EmploymentStatus string        `json:"employment_status"`
	OwnOtherProperty string        `json:"own_other_property"`
	CoSignerContact  *ContactBlock `json:"co_signer_contact,omitempty" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveFlowIsCoSigner reports whether the session's flow-selector answer puts
// it on the co-signer path.
func (s *QuestionnaireSession) ActiveFlowIsCoSigner() bool {
	v, ok := s.Responses.Get(FlowSelectorQuestionID)
	if !ok {
		return false
	}
	scalar, ok := ScalarAnswer(v)
	return ok && scalar == FlowAnswerCoSigner
}

// InActiveFlow reports whether a question belongs to the session's currently
// active flow. Shared questions belong to both flows.
func (s *QuestionnaireSession) InActiveFlow(flow Flow) bool {
	if flow == FlowShared {
		return true
	}
	if s.ActiveFlowIsCoSigner() {
		return flow == FlowCoPrimary || flow == FlowCoApplicant
	}
	return flow == FlowSolo
}
