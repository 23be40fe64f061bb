package services

import (
	"testing"

	"roost/models"

	"github.com/stretchr/testify/assert"
)

// newFixtureCatalog builds a small catalog whose solo flow has exactly nine
// questions (five shared, four solo, terminal included), so the expected
// percentages come out to round numbers that are easy to audit by hand.
func newFixtureCatalog(t *testing.T) *QuestionCatalog {
	t.Helper()

	yesNo := []models.Option{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}}
	questions := []models.Question{
		{ID: 1, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: CategoryGettingStarted, Prompt: "Goal", Options: yesNo, NextQuestion: 2},
		{ID: 2, Type: models.QuestionTypeForm, Flow: models.FlowShared, Category: CategoryGettingStarted, Prompt: "Name", Fields: []models.Field{{Key: "firstName", Label: "First name", Required: true}}, NextQuestion: 3},
		{ID: 3, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: CategoryGettingStarted, Prompt: "Timeline", Options: yesNo, NextQuestion: 4},
		{ID: 4, Type: models.QuestionTypeDropdown, Flow: models.FlowShared, Category: CategoryGettingStarted, Prompt: "Property", Options: yesNo, NextQuestion: 5},
		{ID: 5, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: CategoryGettingStarted, Prompt: "Who is applying?",
			Options: []models.Option{
				{Value: models.FlowAnswerJustMe, Label: "Just me"},
				{Value: models.FlowAnswerCoSigner, Label: "Me and a co-signer"},
			},
			NextQuestionMap: map[string]int{models.FlowAnswerJustMe: 6, models.FlowAnswerCoSigner: 20},
		},
		{ID: 6, Type: models.QuestionTypeForm, Flow: models.FlowSolo, Category: CategoryPersonalDetails, Prompt: "About you", Fields: []models.Field{{Key: "dateOfBirth", Label: "Date of birth", Required: true}}, NextQuestion: 7},
		{ID: 7, Type: models.QuestionTypeChoice, Flow: models.FlowSolo, Category: CategoryPersonalDetails, Prompt: "Housing", Options: yesNo, NextQuestion: 8},
		{ID: 8, Type: models.QuestionTypeNumeric, Flow: models.FlowSolo, Category: CategoryIncomeDetails, Prompt: "Income", Fields: []models.Field{{Key: "income", Label: "Income", Required: true}}, NextQuestion: 9},
		{ID: 9, Type: models.QuestionTypeTerminal, Flow: models.FlowSolo, Category: CategoryConfirmation, Prompt: "All done"},
		{ID: 20, Type: models.QuestionTypeTerminal, Flow: models.FlowCoPrimary, Category: CategoryConfirmation, Prompt: "All done"},
	}
	categories := []models.CategoryInfo{
		{ID: CategoryGettingStarted, Label: "Getting started"},
		{ID: CategoryPersonalDetails, Label: "Personal details"},
		{ID: CategoryIncomeDetails, Label: "Income details"},
		{ID: CategoryConfirmation, Label: "Confirmation"},
	}
	starts := map[string]categoryStart{
		CategoryGettingStarted:  {Solo: 1, CoPrimary: 1},
		CategoryPersonalDetails: {Solo: 6},
		CategoryIncomeDetails:   {Solo: 8},
		CategoryConfirmation:    {Solo: 9, CoPrimary: 20},
	}

	catalog, err := NewQuestionCatalog(questions, categories, starts, nil)
	assert.NoError(t, err)
	return catalog
}

func TestProgressCalculator_Percentage(t *testing.T) {
	calc := NewProgressCalculator(newFixtureCatalog(t))

	tests := []struct {
		name     string
		visited  models.IntSlice
		coSigner bool
		want     int
	}{
		{"no questions visited", models.IntSlice{}, false, 0},
		{"four of nine solo questions", models.IntSlice{1, 2, 4, 5}, false, 44},
		{"five of nine solo questions", models.IntSlice{1, 2, 3, 4, 5}, false, 56},
		{"terminal counts like any node", models.IntSlice{1, 2, 3, 4, 5, 6, 7, 8, 9}, false, 100},
		{"shared progress over the shorter co-signer flow", models.IntSlice{1, 2, 4, 5}, true, 67},
		{"duplicate and unknown ids never inflate", models.IntSlice{1, 1, 2, 999}, false, 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &models.QuestionnaireSession{
				ApplicantID:      "app-progress",
				Responses:        models.ResponseMap{},
				VisitedQuestions: tt.visited,
			}
			if tt.coSigner {
				sess.Responses.Set(models.FlowSelectorQuestionID, models.FlowAnswerCoSigner)
			}
			assert.Equal(t, tt.want, calc.Progress(sess))
		})
	}
}

func TestProgressCalculator_FlowIsolation(t *testing.T) {
	calc := NewProgressCalculator(newFixtureCatalog(t))

	// Solo answers left over from before a flow switch contribute nothing once
	// the session is in the co-signer flow.
	sess := &models.QuestionnaireSession{
		ApplicantID:      "app-iso",
		Responses:        models.ResponseMap{"5": models.FlowAnswerCoSigner},
		VisitedQuestions: models.IntSlice{1, 2, 3, 4, 5, 6, 7, 8},
	}
	// Co-signer flow counts shared 1-5 plus the co-side terminal: 5 of 6.
	assert.Equal(t, 83, calc.Progress(sess))
}

func TestProgressCalculator_BackNavigationDecreases(t *testing.T) {
	catalog := newFixtureCatalog(t)
	calc := NewProgressCalculator(catalog)
	nav := NewNavigator(catalog)

	sess := &models.QuestionnaireSession{
		ApplicantID:       "app-back",
		Responses:         models.ResponseMap{},
		CurrentQuestionID: 4,
		QuestionHistory:   models.IntSlice{1, 2, 3, 4},
		VisitedQuestions:  models.IntSlice{1, 2, 3, 4},
	}
	before := calc.Progress(sess)
	assert.True(t, nav.GoBack(sess))
	after := calc.Progress(sess)
	assert.Less(t, after, before)
	assert.Equal(t, 33, after)
}

func TestProgressCalculator_DefaultCatalogBounds(t *testing.T) {
	catalog := NewDefaultQuestionCatalog()
	calc := NewProgressCalculator(catalog)

	// Visiting every solo-flow id pins 100, and over-visiting cannot exceed it.
	ids := catalog.FlowQuestionIDs(false)
	sess := &models.QuestionnaireSession{
		ApplicantID:      "app-full",
		Responses:        models.ResponseMap{"5": models.FlowAnswerJustMe},
		VisitedQuestions: append(models.IntSlice{}, append(ids, ids...)...),
	}
	assert.Equal(t, 100, calc.Progress(sess))
}
