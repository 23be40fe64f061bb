package services

import (
	"encoding/json"
	"testing"
	"time"

	"roost/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockQuestionnaireRepository is a mock type for the QuestionnaireRepository interface
type MockQuestionnaireRepository struct {
	mock.Mock
}

func (m *MockQuestionnaireRepository) CreateSession(session *models.QuestionnaireSession) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockQuestionnaireRepository) GetSessionByApplicantID(applicantID string) (*models.QuestionnaireSession, error) {
	args := m.Called(applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionnaireSession), args.Error(1)
}

func (m *MockQuestionnaireRepository) SaveSnapshot(session *models.QuestionnaireSession) error {
	args := m.Called(session)
	return args.Error(0)
}

// newTestService builds a service with a mock repository that accepts any
// create/save. The auto-save delay is long enough that debounced saves never
// fire during a test.
func newTestService(t *testing.T) (QuestionnaireService, *MockQuestionnaireRepository) {
	t.Helper()
	mockRepo := new(MockQuestionnaireRepository)
	mockRepo.On("GetSessionByApplicantID", mock.Anything).Return(nil, nil).Maybe()
	mockRepo.On("CreateSession", mock.AnythingOfType("*models.QuestionnaireSession")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.QuestionnaireSession).ID = 1 // Simulate DB assigning ID
	}).Return(nil).Maybe()
	mockRepo.On("SaveSnapshot", mock.AnythingOfType("*models.QuestionnaireSession")).Return(nil).Maybe()

	svc := NewQuestionnaireService(mockRepo, NewDefaultQuestionCatalog(), time.Hour)
	t.Cleanup(svc.Close)
	return svc, mockRepo
}

// answerSharedQuestions walks a fresh session up to the flow selector.
func answerSharedQuestions(t *testing.T, svc QuestionnaireService, applicantID string) {
	t.Helper()
	q, _, err := svc.StartOrContinue(applicantID)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.ID)

	steps := []struct {
		id    int
		value interface{}
	}{
		{1, "buy_home"},
		{2, map[string]interface{}{"firstName": "Alex", "lastName": "Chen", "email": "alex@example.com", "phone": "4165550123"}},
		{3, "within_3_months"},
		{4, "condo"},
	}
	for _, step := range steps {
		next, _, fieldErrs, err := svc.SubmitAnswer(applicantID, step.id, step.value)
		assert.NoError(t, err)
		assert.Empty(t, fieldErrs, "question %d", step.id)
		assert.NotNil(t, next)
	}
}

func TestQuestionnaireService_StartOrContinue(t *testing.T) {
	t.Run("starts a new session with seeded defaults", func(t *testing.T) {
		svc, mockRepo := newTestService(t)

		q, sess, err := svc.StartOrContinue("app-new")
		assert.NoError(t, err)
		assert.NotNil(t, q)
		assert.Equal(t, 1, q.ID)
		assert.Equal(t, models.IntSlice{1}, sess.QuestionHistory)
		assert.Equal(t, models.IntSlice{1}, sess.VisitedQuestions)

		// Income defaults are pre-seeded before any user input.
		v, ok := sess.Responses.Get(11)
		assert.True(t, ok)
		assert.Equal(t, "no", models.RecordField(v, "bonuses"))

		mockRepo.AssertCalled(t, "CreateSession", mock.Anything)
	})

	t.Run("restored snapshot without history gets a minimal synthesized set", func(t *testing.T) {
		mockRepo := new(MockQuestionnaireRepository)
		stored := &models.QuestionnaireSession{
			ID:          7,
			ApplicantID: "app-restore",
			Responses: models.ResponseMap{
				"1": "buy_home",
				"5": models.FlowAnswerJustMe,
				"9": "full_time",
			},
			CurrentQuestionID: 9,
		}
		mockRepo.On("GetSessionByApplicantID", "app-restore").Return(stored, nil).Once()

		svc := NewQuestionnaireService(mockRepo, NewDefaultQuestionCatalog(), time.Hour)
		t.Cleanup(svc.Close)
		mockRepo.On("SaveSnapshot", mock.Anything).Return(nil).Maybe()

		q, sess, err := svc.StartOrContinue("app-restore")
		assert.NoError(t, err)
		assert.Equal(t, 9, q.ID)
		// Visited is NOT inferred from the response map: stale answers must
		// not inflate progress.
		assert.Equal(t, models.IntSlice{1, 9}, sess.QuestionHistory)
		assert.Equal(t, models.IntSlice{1, 9}, sess.VisitedQuestions)
		mockRepo.AssertExpectations(t)
	})
}

func TestQuestionnaireService_CoSignerRouting(t *testing.T) {
	svc, _ := newTestService(t)
	applicantID := "app-co"
	answerSharedQuestions(t, svc, applicantID)

	// Choosing the co-signer flow routes to the co-primary name question.
	next, _, fieldErrs, err := svc.SubmitAnswer(applicantID, 5, models.FlowAnswerCoSigner)
	assert.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, 100, next.ID)

	// Filling the primary name question routes to 102 (date of birth / SIN),
	// never to the solo path or the co-applicant's questions.
	next, _, fieldErrs, err = svc.SubmitAnswer(applicantID, 100, map[string]interface{}{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane.doe@example.com",
		"phone":     "4165550000",
	})
	assert.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, 102, next.ID)
}

func TestQuestionnaireService_PreApprovalGate(t *testing.T) {
	mockRepo := new(MockQuestionnaireRepository)
	stored := &models.QuestionnaireSession{
		ID:          3,
		ApplicantID: "app-income",
		Responses: models.ResponseMap{
			"5": models.FlowAnswerJustMe,
		},
		CurrentQuestionID: 11,
		QuestionHistory:   models.IntSlice{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		VisitedQuestions:  models.IntSlice{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	}
	mockRepo.On("GetSessionByApplicantID", "app-income").Return(stored, nil).Once()
	mockRepo.On("SaveSnapshot", mock.Anything).Return(nil).Maybe()
	svc := NewQuestionnaireService(mockRepo, NewDefaultQuestionCatalog(), time.Hour)
	t.Cleanup(svc.Close)

	t.Run("no bonus amount needed when toggles are no", func(t *testing.T) {
		next, _, fieldErrs, err := svc.SubmitAnswer("app-income", 11, map[string]interface{}{
			"income":   "80000",
			"bonuses":  "no",
			"benefits": "no",
		})
		assert.NoError(t, err)
		assert.Empty(t, fieldErrs)
		assert.Equal(t, 12, next.ID)
	})

	t.Run("bonus amount required once bonuses is yes", func(t *testing.T) {
		_, _, err := svc.GoBack("app-income")
		assert.NoError(t, err)

		q, _, fieldErrs, err := svc.SubmitAnswer("app-income", 11, map[string]interface{}{
			"income":   "80000",
			"bonuses":  "yes",
			"benefits": "no",
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, fieldErrs)
		assert.Contains(t, fieldErrs, "bonusComissionAnnualAmount")
		// Blocked: still on the income question.
		assert.Equal(t, 11, q.ID)
	})
}

func TestQuestionnaireService_FlowSwitchReset(t *testing.T) {
	svc, _ := newTestService(t)
	applicantID := "app-switch"
	answerSharedQuestions(t, svc, applicantID)

	// Walk into the solo flow.
	next, _, _, err := svc.SubmitAnswer(applicantID, 5, models.FlowAnswerJustMe)
	assert.NoError(t, err)
	assert.Equal(t, 6, next.ID)
	next, _, _, err = svc.SubmitAnswer(applicantID, 6, map[string]interface{}{"dateOfBirth": "1990-04-01", "sin": "123456789"})
	assert.NoError(t, err)
	assert.Equal(t, 7, next.ID)
	next, _, _, err = svc.SubmitAnswer(applicantID, 7, map[string]interface{}{
		"street": "1 Main St", "city": "Toronto", "province": "ON", "postalCode": "M1M 1M1",
	})
	assert.NoError(t, err)
	assert.Equal(t, 8, next.ID)

	// Flip the selector to the co-signer flow. The reset prunes everything
	// beyond the shared questions and parks the user back on the selector.
	sess, _, err := svc.RecordAnswer(applicantID, 5, models.FlowAnswerCoSigner)
	assert.NoError(t, err)
	assert.Equal(t, 5, sess.CurrentQuestionID)
	assert.True(t, sess.ActiveFlowIsCoSigner())

	// No solo-only id survives in the visited set or history.
	for _, id := range sess.VisitedQuestions {
		assert.LessOrEqual(t, id, 5, "solo question %d survived the flow switch", id)
	}
	assert.Equal(t, models.IntSlice{1, 2, 3, 4, 5}, sess.QuestionHistory)

	// Solo answers are gone; shared answers and seeded defaults survive.
	_, ok := sess.Responses.Get(6)
	assert.False(t, ok)
	_, ok = sess.Responses.Get(7)
	assert.False(t, ok)
	v, ok := sess.Responses.Get(2)
	assert.True(t, ok)
	assert.Equal(t, "Alex", models.RecordField(v, "firstName"))
	v, ok = sess.Responses.Get(112)
	assert.True(t, ok, "seeded defaults are restored by the reset")
	assert.Equal(t, "no", models.RecordField(v, "bonuses"))

	// Switching back again prunes the co-signer side the same way.
	next, _, _, err = svc.SubmitAnswer(applicantID, 5, models.FlowAnswerJustMe)
	assert.NoError(t, err)
	assert.Equal(t, 5, next.ID, "the user re-confirms the branch after a switch")
	sess, err = svc.SessionSnapshot(applicantID)
	assert.NoError(t, err)
	selector, ok := sess.Responses.Get(5)
	assert.True(t, ok)
	assert.Equal(t, models.FlowAnswerJustMe, selector)
	assert.False(t, sess.ActiveFlowIsCoSigner())
}

func TestQuestionnaireService_SessionSnapshotIsACopy(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.StartOrContinue("app-snap")
	assert.NoError(t, err)

	snap, err := svc.SessionSnapshot("app-snap")
	assert.NoError(t, err)
	snap.Responses.Set(1, "tampered")
	snap.VisitedQuestions = append(snap.VisitedQuestions, 99)
	snap.QuestionHistory = append(snap.QuestionHistory, 99)

	// Writes to the snapshot never reach the live session.
	fresh, err := svc.SessionSnapshot("app-snap")
	assert.NoError(t, err)
	_, ok := fresh.Responses.Get(1)
	assert.False(t, ok)
	assert.Equal(t, models.IntSlice{1}, fresh.VisitedQuestions)
	assert.Equal(t, models.IntSlice{1}, fresh.QuestionHistory)
}

func TestQuestionnaireService_SaveIsIdempotent(t *testing.T) {
	var snapshots []string
	mockRepo := new(MockQuestionnaireRepository)
	mockRepo.On("GetSessionByApplicantID", mock.Anything).Return(nil, nil).Once()
	mockRepo.On("CreateSession", mock.Anything).Return(nil).Once()
	mockRepo.On("SaveSnapshot", mock.AnythingOfType("*models.QuestionnaireSession")).Run(func(args mock.Arguments) {
		sess := args.Get(0).(*models.QuestionnaireSession)
		payload, err := json.Marshal(map[string]interface{}{
			"responses":        sess.Responses,
			"employmentStatus": sess.EmploymentStatus,
			"ownOtherProperty": sess.OwnOtherProperty,
			"coSignerContact":  sess.CoSignerContact,
		})
		assert.NoError(t, err)
		snapshots = append(snapshots, string(payload))
	}).Return(nil)

	svc := NewQuestionnaireService(mockRepo, NewDefaultQuestionCatalog(), time.Hour)
	t.Cleanup(svc.Close)

	_, _, err := svc.StartOrContinue("app-save")
	assert.NoError(t, err)
	_, _, err = svc.RecordAnswer("app-save", 1, "buy_home")
	assert.NoError(t, err)

	_, err = svc.Save("app-save")
	assert.NoError(t, err)
	_, err = svc.Save("app-save")
	assert.NoError(t, err)

	assert.GreaterOrEqual(t, len(snapshots), 2)
	assert.Equal(t, snapshots[len(snapshots)-2], snapshots[len(snapshots)-1],
		"re-saving an unchanged response map must produce an identical payload")
}

func TestQuestionnaireService_Submit(t *testing.T) {
	mockRepo := new(MockQuestionnaireRepository)
	stored := &models.QuestionnaireSession{
		ID:          9,
		ApplicantID: "app-done",
		Responses: models.ResponseMap{
			"5": models.FlowAnswerJustMe,
			"8": "rent",
			"9": "full_time",
		},
		CurrentQuestionID: 14,
		QuestionHistory:   models.IntSlice{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
		VisitedQuestions:  models.IntSlice{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
	}
	mockRepo.On("GetSessionByApplicantID", "app-done").Return(stored, nil).Once()
	mockRepo.On("SaveSnapshot", mock.Anything).Return(nil)
	svc := NewQuestionnaireService(mockRepo, NewDefaultQuestionCatalog(), time.Hour)
	t.Cleanup(svc.Close)

	t.Run("submit on the terminal question completes the session", func(t *testing.T) {
		sess, err := svc.Submit("app-done")
		assert.NoError(t, err)
		assert.True(t, sess.IsCompleted)
		assert.NotNil(t, sess.CompletedAt)
		// The snapshot summary ships the derived fields.
		assert.Equal(t, "full_time", sess.EmploymentStatus)
		assert.Equal(t, "no", sess.OwnOtherProperty)
	})

	t.Run("submitting again is a no-op", func(t *testing.T) {
		sess, err := svc.Submit("app-done")
		assert.NoError(t, err)
		assert.True(t, sess.IsCompleted)
	})

	t.Run("answers are refused after completion", func(t *testing.T) {
		_, _, _, err := svc.SubmitAnswer("app-done", 14, "anything")
		assert.Error(t, err)
	})
}

func TestQuestionnaireService_SubmitRequiresTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.StartOrContinue("app-early")
	assert.NoError(t, err)

	_, err = svc.Submit("app-early")
	assert.Error(t, err)
}
