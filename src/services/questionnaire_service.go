package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"roost/models"
	"roost/repository"
)

// QuestionnaireService drives the main questionnaire flow: it owns the live
// session state, applies answers, navigates, resets on flow switches and
// flushes snapshots to the repository. All navigation mutations happen under
// one lock, so state changes are atomic relative to each user action.
type QuestionnaireService interface {
	// StartOrContinue loads or creates the applicant's session and returns the
	// question to render. A nil question with a non-nil session means the
	// current id has no catalog match and the UI should show a loading state.
	StartOrContinue(applicantID string) (*models.Question, *models.QuestionnaireSession, error)
	// RecordAnswer stores an answer without advancing and schedules a
	// debounced auto-save. Returned field errors are advisory (inline
	// messages); the answer is stored regardless.
	RecordAnswer(applicantID string, questionID int, value interface{}) (*models.QuestionnaireSession, FieldErrors, error)
	// SubmitAnswer stores an answer for the current question and advances.
	// Non-empty field errors block the advance.
	SubmitAnswer(applicantID string, questionID int, value interface{}) (*models.Question, *models.QuestionnaireSession, FieldErrors, error)
	// GoBack pops the history stack and returns the new current question.
	GoBack(applicantID string) (*models.Question, *models.QuestionnaireSession, error)
	// Save flushes the full snapshot immediately and surfaces failures.
	Save(applicantID string) (*models.QuestionnaireSession, error)
	// Submit completes the questionnaire; only valid on a terminal question.
	Submit(applicantID string) (*models.QuestionnaireSession, error)
	// Progress returns the 0-100 completion percentage for the active flow.
	Progress(applicantID string) (int, *models.QuestionnaireSession, error)
	// SessionSnapshot returns a defensive copy of the applicant's session for
	// collaborators (category editor). The copy is taken under the service
	// lock; readers never touch the live response map.
	SessionSnapshot(applicantID string) (*models.QuestionnaireSession, error)
	// MergeResponses merges a working copy of answers back into the session
	// and performs a silent save. Used by the category editor on section exit.
	MergeResponses(applicantID string, working models.ResponseMap) error
	// AddCoSigner switches a solo session to the co-signer flow, copies solo
	// answers into their co-primary counterparts and jumps to the co-signer's
	// name question.
	AddCoSigner(applicantID string) (*models.Question, *models.QuestionnaireSession, error)
	// Close cancels pending auto-saves and flushes all live sessions.
	Close()
}

type questionnaireService struct {
	repo     repository.QuestionnaireRepository
	catalog  *QuestionCatalog
	nav      *Navigator
	progress *ProgressCalculator

	mu       sync.Mutex
	sessions map[string]*models.QuestionnaireSession
	saver    *AutoSaver
}

// NewQuestionnaireService creates a new instance of QuestionnaireService.
func NewQuestionnaireService(repo repository.QuestionnaireRepository, catalog *QuestionCatalog, autoSaveDelay time.Duration) QuestionnaireService {
	s := &questionnaireService{
		repo:     repo,
		catalog:  catalog,
		nav:      NewNavigator(catalog),
		progress: NewProgressCalculator(catalog),
		sessions: make(map[string]*models.QuestionnaireSession),
	}
	s.saver = NewAutoSaver(autoSaveDelay, s.flushSilently)
	return s
}

func (s *questionnaireService) StartOrContinue(applicantID string) (*models.Question, *models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadLocked(applicantID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		sess = &models.QuestionnaireSession{
			ApplicantID:       applicantID,
			Responses:         DefaultResponses(),
			CurrentQuestionID: 1,
			QuestionHistory:   models.IntSlice{1},
			VisitedQuestions:  models.IntSlice{1},
		}
		if err := s.repo.CreateSession(sess); err != nil {
			return nil, nil, fmt.Errorf("failed to start questionnaire for applicant %s: %w", applicantID, err)
		}
		s.sessions[applicantID] = sess
		log.Printf("INFO: [QuestionnaireService] Started new questionnaire for applicant %s.", applicantID)
	}

	q, ok := s.catalog.GetQuestion(sess.CurrentQuestionID)
	if !ok {
		// Catalog/id mismatch can legitimately happen during hydration races;
		// the UI degrades to a loading state rather than crashing.
		log.Printf("ERROR: [QuestionnaireService] No catalog question for current id %d (applicant %s).", sess.CurrentQuestionID, applicantID)
		return nil, sess, nil
	}
	return q, sess, nil
}

func (s *questionnaireService) RecordAnswer(applicantID string, questionID int, value interface{}) (*models.QuestionnaireSession, FieldErrors, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, nil, err
	}
	q, ok := s.catalog.GetQuestion(questionID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown question id %d", questionID)
	}

	s.applyAnswerLocked(sess, q, value)
	s.saver.Schedule(applicantID)
	return sess, ValidateAnswer(q, value), nil
}

func (s *questionnaireService) SubmitAnswer(applicantID string, questionID int, value interface{}) (*models.Question, *models.QuestionnaireSession, FieldErrors, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess.IsCompleted {
		return nil, sess, nil, errors.New("this questionnaire has already been submitted")
	}
	if questionID != sess.CurrentQuestionID {
		current, _ := s.catalog.GetQuestion(sess.CurrentQuestionID)
		log.Printf("WARN: [QuestionnaireService] Applicant %s answered question %d but the current question is %d.", applicantID, questionID, sess.CurrentQuestionID)
		return current, sess, nil, fmt.Errorf("question %d is not the current question", questionID)
	}
	q, ok := s.catalog.GetQuestion(questionID)
	if !ok {
		return nil, sess, nil, fmt.Errorf("unknown question id %d", questionID)
	}

	fieldErrs := ValidateAnswer(q, value)
	for k, v := range ValidatePreApproval(q, value) {
		fieldErrs[k] = v
	}
	if !fieldErrs.Empty() {
		return q, sess, fieldErrs, nil
	}

	switched := s.applyAnswerLocked(sess, q, value)
	if switched {
		// The flow-switch reset parks the user back on the selector so they
		// re-confirm the branch visually before moving on.
		s.saver.Schedule(applicantID)
		current, _ := s.catalog.GetQuestion(sess.CurrentQuestionID)
		return current, sess, nil, nil
	}

	nextID, hasNext := s.nav.ResolveNext(q, value, true)
	if hasNext {
		s.nav.Advance(sess, nextID)
	}
	s.saver.Schedule(applicantID)

	next, ok := s.catalog.GetQuestion(sess.CurrentQuestionID)
	if !ok {
		log.Printf("ERROR: [QuestionnaireService] Advanced to id %d which has no catalog question (applicant %s).", sess.CurrentQuestionID, applicantID)
		return nil, sess, nil, nil
	}
	return next, sess, nil, nil
}

func (s *questionnaireService) GoBack(applicantID string) (*models.Question, *models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, nil, err
	}
	if !s.nav.GoBack(sess) {
		log.Printf("INFO: [QuestionnaireService] Applicant %s is at the start of the questionnaire; nothing to go back to.", applicantID)
	} else {
		s.saver.Schedule(applicantID)
	}
	q, ok := s.catalog.GetQuestion(sess.CurrentQuestionID)
	if !ok {
		return nil, sess, nil
	}
	return q, sess, nil
}

func (s *questionnaireService) Save(applicantID string) (*models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, err
	}
	s.saver.Cancel(applicantID)
	if err := s.flushLocked(sess); err != nil {
		return sess, err
	}
	return sess, nil
}

func (s *questionnaireService) Submit(applicantID string) (*models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted {
		return sess, nil
	}
	q, ok := s.catalog.GetQuestion(sess.CurrentQuestionID)
	if !ok || !q.IsTerminal() {
		return sess, errors.New("the questionnaire is not finished yet")
	}

	now := time.Now()
	sess.IsCompleted = true
	sess.CompletedAt = &now
	s.saver.Cancel(applicantID)
	if err := s.flushLocked(sess); err != nil {
		// Submission only sticks once the save succeeds.
		sess.IsCompleted = false
		sess.CompletedAt = nil
		return sess, err
	}
	log.Printf("INFO: [QuestionnaireService] Applicant %s completed the questionnaire.", applicantID)
	return sess, nil
}

func (s *questionnaireService) Progress(applicantID string) (int, *models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return 0, nil, err
	}
	return s.progress.Progress(sess), sess, nil
}

func (s *questionnaireService) SessionSnapshot(applicantID string) (*models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(sess), nil
}

// snapshotOf copies a session for use outside the service lock. The response
// map and navigation slices are cloned; everything else is value-copied.
func snapshotOf(sess *models.QuestionnaireSession) *models.QuestionnaireSession {
	out := *sess
	out.Responses = sess.Responses.Clone()
	out.VisitedQuestions = append(models.IntSlice(nil), sess.VisitedQuestions...)
	out.QuestionHistory = append(models.IntSlice(nil), sess.QuestionHistory...)
	return &out
}

func (s *questionnaireService) MergeResponses(applicantID string, working models.ResponseMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return err
	}
	prevSelector := scalarResponse(sess.Responses, models.FlowSelectorQuestionID)
	for key, value := range working {
		sess.Responses[key] = value
	}
	newSelector := scalarResponse(sess.Responses, models.FlowSelectorQuestionID)
	if prevSelector != "" && newSelector != prevSelector {
		s.resetForFlowSwitchLocked(sess, newSelector)
	}
	// Silent save: failures are logged, never surfaced, so section edits are
	// not interrupted by transient connectivity blips.
	if err := s.flushLocked(sess); err != nil {
		log.Printf("WARN: [QuestionnaireService] Silent save failed for applicant %s: %v", applicantID, err)
	}
	return nil
}

func (s *questionnaireService) AddCoSigner(applicantID string) (*models.Question, *models.QuestionnaireSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSessionLocked(applicantID)
	if err != nil {
		return nil, nil, err
	}
	if sess.ActiveFlowIsCoSigner() {
		return nil, sess, errors.New("a co-signer has already been added")
	}

	before := sess.Responses.Clone()
	selector, ok := s.catalog.GetQuestion(models.FlowSelectorQuestionID)
	if !ok {
		return nil, sess, errors.New("flow selector question missing from catalog")
	}
	s.applyAnswerLocked(sess, selector, models.FlowAnswerCoSigner)

	// Seed the co-primary path from the answers collected in the solo flow,
	// via the copy map declared next to the catalog.
	for _, pair := range s.catalog.CoSignerCopyPairs() {
		if v, ok := before.Get(pair[0]); ok {
			sess.Responses.Set(pair[1], v)
		}
	}

	// Bootstrap jump: straight to the co-signer's name question, bypassing
	// normal category selection for this one transition.
	s.nav.Advance(sess, coApplicantNameQuestionID)
	if err := s.flushLocked(sess); err != nil {
		log.Printf("WARN: [QuestionnaireService] Silent save failed after adding co-signer for applicant %s: %v", applicantID, err)
	}

	q, _ := s.catalog.GetQuestion(coApplicantNameQuestionID)
	log.Printf("INFO: [QuestionnaireService] Applicant %s added a co-signer.", applicantID)
	// The editor reads the returned session after this lock is released, so it
	// gets a snapshot, never the live record.
	return q, snapshotOf(sess), nil
}

func (s *questionnaireService) Close() {
	s.saver.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if err := s.flushLocked(sess); err != nil {
			log.Printf("WARN: [QuestionnaireService] Flush on close failed for applicant %s: %v", sess.ApplicantID, err)
		}
	}
}

// applyAnswerLocked stores an answer and, when the flow-selector answer
// changes value, performs the flow-switch reset. Reports whether a reset
// happened. Callers hold s.mu.
func (s *questionnaireService) applyAnswerLocked(sess *models.QuestionnaireSession, q *models.Question, value interface{}) bool {
	if q.ID == models.FlowSelectorQuestionID {
		prev, hadPrev := sess.Responses.Get(q.ID)
		prevScalar, _ := models.ScalarAnswer(prev)
		newScalar, _ := models.ScalarAnswer(value)
		sess.Responses.Set(q.ID, value)
		if hadPrev && prevScalar != "" && prevScalar != newScalar {
			s.resetForFlowSwitchLocked(sess, newScalar)
			return true
		}
		return false
	}
	sess.Responses.Set(q.ID, value)
	return false
}

// resetForFlowSwitchLocked prunes state that belongs to the abandoned flow.
// The rebuilt response map starts from the seeded defaults, then re-adds every
// answer whose question is shared (ids up to the selector) or belongs to the
// newly selected flow. Visited set and history are filtered by the same
// membership test, and the current question is forced back to the selector.
func (s *questionnaireService) resetForFlowSwitchLocked(sess *models.QuestionnaireSession, newFlowValue string) {
	// The selector answer is already the new value by the time the reset runs,
	// so flow membership is checked against the session itself.
	keep := func(id int) bool {
		if id <= models.FlowSelectorQuestionID {
			return true
		}
		q, ok := s.catalog.GetQuestion(id)
		if !ok {
			return false
		}
		return sess.InActiveFlow(q.Flow)
	}

	rebuilt := DefaultResponses()
	for key, value := range sess.Responses {
		id, err := strconv.Atoi(key)
		if err != nil {
			log.Printf("WARN: [QuestionnaireService] Dropping response with non-numeric key %q during flow switch for applicant %s.", key, sess.ApplicantID)
			continue
		}
		if keep(id) {
			rebuilt[key] = value
		}
	}
	sess.Responses = rebuilt

	history := make(models.IntSlice, 0, len(sess.QuestionHistory))
	for _, id := range sess.QuestionHistory {
		if keep(id) {
			history = append(history, id)
		}
	}
	if len(history) == 0 {
		history = models.IntSlice{models.FlowSelectorQuestionID}
	}
	sess.QuestionHistory = history

	visited := make(models.IntSlice, 0, len(sess.VisitedQuestions))
	for _, id := range sess.VisitedQuestions {
		if keep(id) {
			visited = append(visited, id)
		}
	}
	sess.VisitedQuestions = visited

	sess.CurrentQuestionID = models.FlowSelectorQuestionID
	log.Printf("INFO: [QuestionnaireService] Flow switched to %q for applicant %s; responses pruned to %d entries.", newFlowValue, sess.ApplicantID, len(sess.Responses))
}

// loadLocked returns the live session for an applicant, hydrating from the
// repository on first access. Restored snapshots missing visited/history get
// a minimal synthesized set so stale answers cannot inflate progress.
func (s *questionnaireService) loadLocked(applicantID string) (*models.QuestionnaireSession, error) {
	if sess, ok := s.sessions[applicantID]; ok {
		return sess, nil
	}
	sess, err := s.repo.GetSessionByApplicantID(applicantID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Responses == nil {
		sess.Responses = DefaultResponses()
	}
	if sess.CurrentQuestionID == 0 {
		sess.CurrentQuestionID = 1
	}
	if len(sess.QuestionHistory) == 0 || len(sess.VisitedQuestions) == 0 {
		restored := models.IntSlice{1}
		if sess.CurrentQuestionID != 1 {
			restored = append(restored, sess.CurrentQuestionID)
		}
		sess.QuestionHistory = restored
		sess.VisitedQuestions = append(models.IntSlice(nil), restored...)
		log.Printf("INFO: [QuestionnaireService] Synthesized minimal visited/history for restored applicant %s.", applicantID)
	}
	s.sessions[applicantID] = sess
	return sess, nil
}

func (s *questionnaireService) requireSessionLocked(applicantID string) (*models.QuestionnaireSession, error) {
	sess, err := s.loadLocked(applicantID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("no questionnaire in progress for applicant %s", applicantID)
	}
	return sess, nil
}

// flushLocked writes the full snapshot, refreshing the derived summary fields
// first. The payload is a pure function of the response map, so re-saving an
// unchanged map produces an identical snapshot.
func (s *questionnaireService) flushLocked(sess *models.QuestionnaireSession) error {
	summary := BuildSnapshotSummary(sess)
	sess.EmploymentStatus = summary.EmploymentStatus
	sess.OwnOtherProperty = summary.OwnOtherProperty
	sess.CoSignerContact = summary.CoSignerContact
	return s.repo.SaveSnapshot(sess)
}

// flushSilently is the auto-save callback: it takes the lock itself and logs
// failures instead of returning them to a user action.
func (s *questionnaireService) flushSilently(applicantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[applicantID]
	if !ok {
		return nil
	}
	return s.flushLocked(sess)
}
