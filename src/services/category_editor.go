package services

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"roost/models"
)

// EditorPhase is the category editor's explicit state.
type EditorPhase string

const (
	// EditorPhaseCategorySelect is the initial state; the user can always
	// return here.
	EditorPhaseCategorySelect EditorPhase = "category_select"
	// EditorPhaseInQuestion means the user is editing inside a section.
	EditorPhaseInQuestion EditorPhase = "in_question"
)

// CategoryOverview is one selectable section with its per-flow availability.
type CategoryOverview struct {
	models.CategoryInfo
	Available            bool `json:"available"`
	CoApplicantAvailable bool `json:"coApplicantAvailable"`
}

// CategoryEditor lets a user jump into the middle of the questionnaire, edit
// one section, and resync. Edits go to a local working copy of the response
// map; leaving the section (by reaching its boundary or going back) merges the
// copy into the global store with a silent save. There is no discard: "back"
// commits too.
type CategoryEditor interface {
	Categories(applicantID string) ([]CategoryOverview, error)
	StartCategory(applicantID, categoryID string, coApplicant bool) (*models.Question, interface{}, error)
	CurrentQuestion(applicantID string) (EditorPhase, *models.Question, interface{}, error)
	// RecordAnswer writes into the working copy without advancing.
	RecordAnswer(applicantID string, questionID int, value interface{}) error
	// SubmitAnswer validates, stores into the working copy and advances.
	// finished is true when the section boundary was reached and the editor
	// returned to category selection.
	SubmitAnswer(applicantID string, questionID int, value interface{}) (next *models.Question, finished bool, fieldErrs FieldErrors, err error)
	// Back exits the section, merging and silently saving like a boundary hit.
	Back(applicantID string) error
	// AddCoSigner performs the solo-to-co-signer bootstrap and drops the user
	// straight into the co-signer's name question.
	AddCoSigner(applicantID string) (*models.Question, error)
}

type editorState struct {
	Phase             EditorPhase
	CategoryID        string
	CurrentQuestionID int
	Working           models.ResponseMap
}

type categoryEditor struct {
	svc     QuestionnaireService
	catalog *QuestionCatalog
	nav     *Navigator

	mu     sync.Mutex
	states map[string]*editorState
}

// NewCategoryEditor creates a new instance of CategoryEditor.
func NewCategoryEditor(svc QuestionnaireService, catalog *QuestionCatalog) CategoryEditor {
	return &categoryEditor{
		svc:     svc,
		catalog: catalog,
		nav:     NewNavigator(catalog),
		states:  make(map[string]*editorState),
	}
}

func (e *categoryEditor) Categories(applicantID string) ([]CategoryOverview, error) {
	sess, err := e.svc.SessionSnapshot(applicantID)
	if err != nil {
		return nil, err
	}
	coSigner := sess.ActiveFlowIsCoSigner()

	var out []CategoryOverview
	for _, info := range e.catalog.Categories() {
		_, available := e.catalog.CategoryStart(info.ID, coSigner, false)
		overview := CategoryOverview{CategoryInfo: info, Available: available}
		if coSigner {
			_, overview.CoApplicantAvailable = e.catalog.CategoryStart(info.ID, true, true)
		}
		out = append(out, overview)
	}
	return out, nil
}

func (e *categoryEditor) StartCategory(applicantID, categoryID string, coApplicant bool) (*models.Question, interface{}, error) {
	// Jumping to another section while one is still open commits the open
	// section's edits first, like Back does; partial edits are never dropped.
	e.mu.Lock()
	var pending models.ResponseMap
	if state, ok := e.states[applicantID]; ok && state.Phase == EditorPhaseInQuestion {
		pending = state.Working
		state.Phase = EditorPhaseCategorySelect
		state.Working = nil
	}
	e.mu.Unlock()
	if pending != nil {
		if err := e.svc.MergeResponses(applicantID, pending); err != nil {
			return nil, nil, err
		}
	}

	sess, err := e.svc.SessionSnapshot(applicantID)
	if err != nil {
		return nil, nil, err
	}
	coSigner := sess.ActiveFlowIsCoSigner()
	if coApplicant && !coSigner {
		return nil, nil, errors.New("no co-signer on this application")
	}

	startID, ok := e.catalog.CategoryStart(categoryID, coSigner, coApplicant)
	if !ok {
		return nil, nil, fmt.Errorf("category %q is not available in the current flow", categoryID)
	}
	q, ok := e.catalog.GetQuestion(startID)
	if !ok {
		return nil, nil, fmt.Errorf("category %q starts at missing question %d", categoryID, startID)
	}

	e.mu.Lock()
	e.states[applicantID] = &editorState{
		Phase:             EditorPhaseInQuestion,
		CategoryID:        categoryID,
		CurrentQuestionID: startID,
		// The snapshot's response map is already a private copy.
		Working: sess.Responses,
	}
	value, _ := e.states[applicantID].Working.Get(startID)
	e.mu.Unlock()

	log.Printf("INFO: [CategoryEditor] Applicant %s editing category %q from question %d.", applicantID, categoryID, startID)
	return q, value, nil
}

func (e *categoryEditor) CurrentQuestion(applicantID string) (EditorPhase, *models.Question, interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[applicantID]
	if !ok || state.Phase == EditorPhaseCategorySelect {
		return EditorPhaseCategorySelect, nil, nil, nil
	}
	q, ok := e.catalog.GetQuestion(state.CurrentQuestionID)
	if !ok {
		return state.Phase, nil, nil, fmt.Errorf("no catalog question for id %d", state.CurrentQuestionID)
	}
	value, _ := state.Working.Get(state.CurrentQuestionID)
	return state.Phase, q, value, nil
}

func (e *categoryEditor) RecordAnswer(applicantID string, questionID int, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.inQuestionStateLocked(applicantID)
	if err != nil {
		return err
	}
	state.Working.Set(questionID, value)
	return nil
}

func (e *categoryEditor) SubmitAnswer(applicantID string, questionID int, value interface{}) (*models.Question, bool, FieldErrors, error) {
	e.mu.Lock()
	state, err := e.inQuestionStateLocked(applicantID)
	if err != nil {
		e.mu.Unlock()
		return nil, false, nil, err
	}
	if questionID != state.CurrentQuestionID {
		e.mu.Unlock()
		return nil, false, nil, fmt.Errorf("question %d is not the question being edited", questionID)
	}
	q, ok := e.catalog.GetQuestion(questionID)
	if !ok {
		e.mu.Unlock()
		return nil, false, nil, fmt.Errorf("unknown question id %d", questionID)
	}

	// Same gates as the main flow: generic checks plus the pre-approval gate.
	fieldErrs := ValidateAnswer(q, value)
	for k, v := range ValidatePreApproval(q, value) {
		fieldErrs[k] = v
	}
	if !fieldErrs.Empty() {
		e.mu.Unlock()
		return q, false, fieldErrs, nil
	}

	state.Working.Set(questionID, value)

	nextID, hasNext := e.nav.ResolveNext(q, value, true)
	if hasNext {
		next, ok := e.catalog.GetQuestion(nextID)
		if ok && next.Category == state.CategoryID {
			state.CurrentQuestionID = nextID
			e.mu.Unlock()
			return next, false, nil, nil
		}
		// Crossing into another category is the end of this section, not a
		// real transition.
	}

	working := state.Working
	categoryID := state.CategoryID
	state.Phase = EditorPhaseCategorySelect
	state.Working = nil
	e.mu.Unlock()

	if err := e.svc.MergeResponses(applicantID, working); err != nil {
		return nil, true, nil, err
	}
	log.Printf("INFO: [CategoryEditor] Applicant %s finished editing category %q.", applicantID, categoryID)
	return nil, true, nil, nil
}

func (e *categoryEditor) Back(applicantID string) error {
	e.mu.Lock()
	state, ok := e.states[applicantID]
	if !ok || state.Phase != EditorPhaseInQuestion {
		e.mu.Unlock()
		return nil
	}
	// Leaving mid-section commits the working copy the same way a boundary
	// hit does; partial edits are never dropped.
	working := state.Working
	state.Phase = EditorPhaseCategorySelect
	state.Working = nil
	e.mu.Unlock()

	return e.svc.MergeResponses(applicantID, working)
}

func (e *categoryEditor) AddCoSigner(applicantID string) (*models.Question, error) {
	e.mu.Lock()
	if state, ok := e.states[applicantID]; ok && state.Phase == EditorPhaseInQuestion {
		e.mu.Unlock()
		return nil, errors.New("finish editing the current section first")
	}
	e.mu.Unlock()

	q, sess, err := e.svc.AddCoSigner(applicantID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.states[applicantID] = &editorState{
		Phase:             EditorPhaseInQuestion,
		CategoryID:        q.Category,
		CurrentQuestionID: q.ID,
		// AddCoSigner returns a snapshot, so its map is safe to own.
		Working: sess.Responses,
	}
	e.mu.Unlock()
	return q, nil
}

func (e *categoryEditor) inQuestionStateLocked(applicantID string) (*editorState, error) {
	state, ok := e.states[applicantID]
	if !ok || state.Phase != EditorPhaseInQuestion {
		return nil, errors.New("no section is being edited")
	}
	return state, nil
}
