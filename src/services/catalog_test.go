package services

import (
	"testing"

	"roost/models"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultQuestionCatalog(t *testing.T) {
	catalog := NewDefaultQuestionCatalog()

	t.Run("every question has a category and a known flow", func(t *testing.T) {
		for _, q := range catalog.Questions() {
			assert.NotEmpty(t, q.Category, "question %d has no category", q.ID)
			assert.Contains(t, []models.Flow{models.FlowShared, models.FlowSolo, models.FlowCoPrimary, models.FlowCoApplicant}, q.Flow, "question %d", q.ID)
		}
	})

	t.Run("flow selector branches to both flows", func(t *testing.T) {
		q, ok := catalog.GetQuestion(models.FlowSelectorQuestionID)
		assert.True(t, ok)
		assert.Equal(t, 6, q.NextQuestionMap[models.FlowAnswerJustMe])
		assert.Equal(t, 100, q.NextQuestionMap[models.FlowAnswerCoSigner])
	})

	t.Run("solo and co-signer flows are disjoint beyond shared questions", func(t *testing.T) {
		solo := catalog.FlowQuestionIDs(false)
		co := catalog.FlowQuestionIDs(true)

		coSet := make(map[int]bool)
		for _, id := range co {
			coSet[id] = true
		}
		for _, id := range solo {
			if coSet[id] {
				q, _ := catalog.GetQuestion(id)
				assert.Equal(t, models.FlowShared, q.Flow, "question %d appears in both flows", id)
			}
		}
	})

	t.Run("category starts resolve per flow variant", func(t *testing.T) {
		id, ok := catalog.CategoryStart(CategoryPersonalDetails, false, false)
		assert.True(t, ok)
		assert.Equal(t, 6, id)

		id, ok = catalog.CategoryStart(CategoryPersonalDetails, true, false)
		assert.True(t, ok)
		assert.Equal(t, 100, id)

		id, ok = catalog.CategoryStart(CategoryPersonalDetails, true, true)
		assert.True(t, ok)
		assert.Equal(t, 101, id)

		// Assets have no co-applicant variant.
		_, ok = catalog.CategoryStart(CategoryAssetsDownPayment, true, true)
		assert.False(t, ok)
	})

	t.Run("copy pairs map solo questions onto co-primary counterparts", func(t *testing.T) {
		for _, pair := range catalog.CoSignerCopyPairs() {
			src, ok := catalog.GetQuestion(pair[0])
			assert.True(t, ok, "copy source %d", pair[0])
			dst, ok := catalog.GetQuestion(pair[1])
			assert.True(t, ok, "copy target %d", pair[1])
			assert.Equal(t, models.FlowCoPrimary, dst.Flow)
			// Counterpart questions share the same field schema.
			assert.Equal(t, len(src.Fields), len(dst.Fields), "pair %v", pair)
		}
	})

	t.Run("name collection questions never auto navigate", func(t *testing.T) {
		nav := NewNavigator(catalog)
		for _, id := range []int{2, 100, 101} {
			q, ok := catalog.GetQuestion(id)
			assert.True(t, ok)
			assert.False(t, nav.ShouldAutoNavigate(q), "question %d", id)
		}
	})
}

func TestNewQuestionCatalog_Validation(t *testing.T) {
	categories := []models.CategoryInfo{{ID: "main", Label: "Main"}}
	starts := map[string]categoryStart{"main": {Solo: 1, CoPrimary: 1}}

	t.Run("rejects missing category", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeTerminal, Flow: models.FlowShared},
		}, categories, starts, nil)
		assert.ErrorContains(t, err, "no category")
	})

	t.Run("rejects missing successor", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: "main", NextQuestion: 99},
		}, categories, starts, nil)
		assert.ErrorContains(t, err, "missing successor")
	})

	t.Run("rejects branch target that does not exist", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: "main",
				Options:         []models.Option{{Value: "a"}},
				NextQuestionMap: map[string]int{"a": 42}},
		}, categories, starts, nil)
		assert.ErrorContains(t, err, "missing successor")
	})

	t.Run("rejects option without reachable successor", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: "main",
				Options:         []models.Option{{Value: "a"}, {Value: "b"}},
				NextQuestionMap: map[string]int{"a": 2}},
			{ID: 2, Type: models.QuestionTypeTerminal, Flow: models.FlowShared, Category: "main"},
		}, categories, starts, nil)
		assert.ErrorContains(t, err, "no reachable successor")
	})

	t.Run("rejects terminal question with successor", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeTerminal, Flow: models.FlowShared, Category: "main", NextQuestion: 1},
		}, categories, starts, nil)
		assert.ErrorContains(t, err, "terminal")
	})

	t.Run("rejects copy pair into non co-primary question", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeForm, Flow: models.FlowSolo, Category: "main", NextQuestion: 2},
			{ID: 2, Type: models.QuestionTypeTerminal, Flow: models.FlowShared, Category: "main"},
		}, categories, starts, [][2]int{{1, 2}})
		assert.ErrorContains(t, err, "not a co-primary question")
	})

	t.Run("rejects category start outside its category", func(t *testing.T) {
		_, err := NewQuestionCatalog([]models.Question{
			{ID: 1, Type: models.QuestionTypeTerminal, Flow: models.FlowShared, Category: "other"},
		}, []models.CategoryInfo{{ID: "main", Label: "Main"}}, starts, nil)
		assert.ErrorContains(t, err, "belongs to")
	})
}

func TestDefaultResponses(t *testing.T) {
	defaults := DefaultResponses()

	for _, id := range []int{11, 112, 109} {
		v, ok := defaults.Get(id)
		assert.True(t, ok, "income question %d should have defaults", id)
		assert.Equal(t, "no", models.RecordField(v, "bonuses"))
		assert.Equal(t, "no", models.RecordField(v, "benefits"))
	}
	for _, id := range []int{13, 116} {
		v, ok := defaults.Get(id)
		assert.True(t, ok, "asset question %d should have defaults", id)
		rec, ok := models.RecordAnswer(v)
		assert.True(t, ok)
		assert.Contains(t, rec, "items")
	}
}
