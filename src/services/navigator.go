package services

import (
	"log"

	"roost/models"
)

// Navigator computes forward and backward moves over the question graph and
// applies them to a session's current id, history stack and visited set.
// It never returns errors to the caller for branch misses: a bad branch map
// lookup falls back to the default successor and logs, because throwing here
// would strand the user mid-flow.
type Navigator struct {
	catalog *QuestionCatalog
}

// NewNavigator creates a Navigator over the given catalog.
func NewNavigator(catalog *QuestionCatalog) *Navigator {
	return &Navigator{catalog: catalog}
}

// ResolveNext returns the successor id for a question given the current
// answer. requireAnswer is false for passive "what would be next" queries,
// where an absent answer falls back to the default successor instead of being
// treated as a miss. The second return is false when the question has no
// successor (terminal).
func (n *Navigator) ResolveNext(q *models.Question, answer interface{}, requireAnswer bool) (int, bool) {
	if q.HasBranchMap() {
		if answer == nil {
			if requireAnswer {
				log.Printf("WARN: [Navigator] Question %d has a branch map but no answer to resolve against; falling back to default successor.", q.ID)
			}
			return fallbackNext(q)
		}
		scalar, isScalar := models.ScalarAnswer(answer)
		if !isScalar {
			// Branch maps are only valid for scalar-answer question types; a
			// structured answer here is a catalog authoring error.
			log.Printf("WARN: [Navigator] Question %d has a branch map but a structured answer; falling back to default successor.", q.ID)
			return fallbackNext(q)
		}
		if target, ok := q.NextQuestionMap[scalar]; ok {
			return target, true
		}
		log.Printf("WARN: [Navigator] Question %d branch map has no entry for answer %q; falling back to default successor.", q.ID, scalar)
		return fallbackNext(q)
	}
	return fallbackNext(q)
}

func fallbackNext(q *models.Question) (int, bool) {
	if q.NextQuestion == 0 {
		return 0, false
	}
	return q.NextQuestion, true
}

// Advance moves the session to nextID: pushes it onto the history, adds it to
// the visited set and makes it current. Advancing to the question the session
// is already on is a no-op, guarding accidental self-loops.
func (n *Navigator) Advance(s *models.QuestionnaireSession, nextID int) {
	if nextID == s.CurrentQuestionID {
		return
	}
	s.QuestionHistory = append(s.QuestionHistory, nextID)
	if !s.VisitedQuestions.Contains(nextID) {
		s.VisitedQuestions = append(s.VisitedQuestions, nextID)
	}
	s.CurrentQuestionID = nextID
}

// GoBack pops the history stack and makes the new top the current question.
// The visited set is rebuilt as exactly the remaining history entries, so
// progress decreases when backing up rather than merely freezing. Returns
// false when there is nothing to go back to.
func (n *Navigator) GoBack(s *models.QuestionnaireSession) bool {
	if len(s.QuestionHistory) <= 1 {
		return false
	}
	s.QuestionHistory = s.QuestionHistory[:len(s.QuestionHistory)-1]
	s.CurrentQuestionID = s.QuestionHistory[len(s.QuestionHistory)-1]

	visited := make(models.IntSlice, 0, len(s.QuestionHistory))
	for _, id := range s.QuestionHistory {
		if !visited.Contains(id) {
			visited = append(visited, id)
		}
	}
	s.VisitedQuestions = visited
	return true
}

// ShouldAutoNavigate reports whether answering the question advances the flow
// immediately. Choice-style questions auto-navigate with the value just
// selected; form-style questions, and the name-collection questions in
// particular, wait for an explicit continue so field validation can run first.
func (n *Navigator) ShouldAutoNavigate(q *models.Question) bool {
	if n.catalog.IsNameCollection(q.ID) {
		return false
	}
	switch q.Type {
	case models.QuestionTypeChoice, models.QuestionTypeDropdown, models.QuestionTypeToggle:
		return true
	}
	return false
}
