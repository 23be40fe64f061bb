package services

import (
	"roost/models"
)

// Question ids the summary mapping reads from. The backend snapshot schema
// expects three pre-reduced fields next to the raw response map; they are pure
// derivations and recomputed on every save.
const (
	soloEmploymentQuestionID = 9
	coEmploymentQuestionID   = 108
	soloHousingQuestionID    = 8
	coHousingQuestionID      = 106
)

// BuildSnapshotSummary derives the employment status, own-other-property enum
// and co-signer contact block from the response map, respecting the active
// flow.
func BuildSnapshotSummary(s *models.QuestionnaireSession) models.SnapshotSummary {
	coSigner := s.ActiveFlowIsCoSigner()

	employmentID := soloEmploymentQuestionID
	housingID := soloHousingQuestionID
	if coSigner {
		employmentID = coEmploymentQuestionID
		housingID = coHousingQuestionID
	}

	summary := models.SnapshotSummary{
		EmploymentStatus: scalarResponse(s.Responses, employmentID),
		OwnOtherProperty: ownOtherProperty(scalarResponse(s.Responses, housingID)),
	}

	if coSigner {
		if v, ok := s.Responses.Get(coApplicantNameQuestionID); ok {
			summary.CoSignerContact = &models.ContactBlock{
				FirstName: models.RecordField(v, "firstName"),
				LastName:  models.RecordField(v, "lastName"),
				Email:     models.RecordField(v, "email"),
				Phone:     models.RecordField(v, "phone"),
			}
		}
	}
	return summary
}

// ownOtherProperty reduces the housing-situation answer to the enum the
// backend expects.
func ownOtherProperty(housing string) string {
	switch housing {
	case "own_keeping":
		return "yes"
	case "own_selling":
		return "selling"
	case "rent":
		return "no"
	}
	return ""
}

func scalarResponse(r models.ResponseMap, questionID int) string {
	v, ok := r.Get(questionID)
	if !ok {
		return ""
	}
	s, _ := models.ScalarAnswer(v)
	return s
}
