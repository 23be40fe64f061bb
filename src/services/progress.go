package services

import (
	"log"
	"math"

	"roost/models"
)

// ProgressCalculator derives a 0-100 completion percentage from the visited
// set and the total reachable question count of the session's active flow.
// Questions belonging to the other flow never count in either direction, so a
// co-signer applicant is not penalized for solo-only questions and vice versa.
// Terminal questions count toward both the numerator and the denominator.
type ProgressCalculator struct {
	catalog *QuestionCatalog
}

// NewProgressCalculator creates a ProgressCalculator over the given catalog.
func NewProgressCalculator(catalog *QuestionCatalog) *ProgressCalculator {
	return &ProgressCalculator{catalog: catalog}
}

// Progress returns the rounded completion percentage for the session.
func (p *ProgressCalculator) Progress(s *models.QuestionnaireSession) int {
	flowIDs := p.catalog.FlowQuestionIDs(s.ActiveFlowIsCoSigner())
	if len(flowIDs) == 0 {
		log.Printf("WARN: [ProgressCalculator] Catalog has no questions for the active flow of applicant %s.", s.ApplicantID)
		return 0
	}

	inFlow := make(map[int]bool, len(flowIDs))
	for _, id := range flowIDs {
		inFlow[id] = true
	}

	// The visited set is kept deduplicated by the navigator, but restored
	// snapshots are not trusted to honor that.
	seen := make(map[int]bool, len(s.VisitedQuestions))
	visited := 0
	for _, id := range s.VisitedQuestions {
		if inFlow[id] && !seen[id] {
			seen[id] = true
			visited++
		}
	}

	pct := int(math.Round(float64(visited) / float64(len(flowIDs)) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}
