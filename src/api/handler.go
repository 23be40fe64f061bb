package api

import (
	"net/http"

	"roost/models"
	"roost/services"
	"roost/utils"

	"github.com/gin-gonic/gin"
)

// APIHandler holds all dependencies for API handlers.
type APIHandler struct {
	questionnaireService services.QuestionnaireService
	categoryEditor       services.CategoryEditor
	catalog              *services.QuestionCatalog
	nav                  *services.Navigator
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	questionnaireService services.QuestionnaireService,
	categoryEditor services.CategoryEditor,
	catalog *services.QuestionCatalog,
) *APIHandler {
	return &APIHandler{
		questionnaireService: questionnaireService,
		categoryEditor:       categoryEditor,
		catalog:              catalog,
		nav:                  services.NewNavigator(catalog),
	}
}

// autoNavigate tells the client whether selecting an option on this question
// should submit immediately instead of waiting for an explicit continue.
func (h *APIHandler) autoNavigate(q *models.Question) bool {
	return q != nil && h.nav.ShouldAutoNavigate(q)
}

// answerRequest is the payload for answer and continue endpoints. The question
// id arrives as a JSON number or string depending on the client; it is
// normalized before anything compares it.
type answerRequest struct {
	QuestionID interface{} `json:"questionId" binding:"required"`
	Value      interface{} `json:"value"`
}

type startCategoryRequest struct {
	CoApplicant bool `json:"coApplicant"`
}

// InitHandler returns the applicant id to use for the session, generating a
// guest id when none is supplied, plus the section list for the jump menu.
func (h *APIHandler) InitHandler(c *gin.Context) {
	applicantID := c.Query("applicantID")
	guest := applicantID == ""
	if guest {
		applicantID = utils.GenerateApplicantID()
	}
	c.JSON(http.StatusOK, models.InitResponse{
		ApplicantID: applicantID,
		Guest:       guest,
		Categories:  h.catalog.Categories(),
	})
}

// StartOrContinueHandler loads or creates the applicant's questionnaire and
// returns the question to render plus current progress.
func (h *APIHandler) StartOrContinueHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	question, session, err := h.questionnaireService.StartOrContinue(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load questionnaire.", err)
		return
	}
	progress, _, err := h.questionnaireService.Progress(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to compute progress.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		// A nil question means the current id is still hydrating; the client
		// shows a loading state.
		"question":     question,
		"loading":      question == nil,
		"autoNavigate": h.autoNavigate(question),
		"session":      session,
		"progress":     progress,
	})
}

// RecordAnswerHandler stores a field edit without advancing. Saves are
// debounced; validation messages are advisory.
func (h *APIHandler) RecordAnswerHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	questionID, value, ok := h.bindAnswer(c)
	if !ok {
		return
	}
	_, fieldErrs, err := h.questionnaireService.RecordAnswer(applicantID, questionID, value)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fieldErrors": fieldErrs})
}

// ContinueHandler submits the current question's answer and advances.
func (h *APIHandler) ContinueHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	questionID, value, ok := h.bindAnswer(c)
	if !ok {
		return
	}
	next, session, fieldErrs, err := h.questionnaireService.SubmitAnswer(applicantID, questionID, value)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if len(fieldErrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"fieldErrors": fieldErrs, "question": next})
		return
	}
	h.respondWithQuestion(c, applicantID, next, session)
}

// BackHandler pops the navigation history.
func (h *APIHandler) BackHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	question, session, err := h.questionnaireService.GoBack(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	h.respondWithQuestion(c, applicantID, question, session)
}

// ProgressHandler returns the completion percentage for the progress bar.
func (h *APIHandler) ProgressHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	progress, session, err := h.questionnaireService.Progress(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress, "isCompleted": session.IsCompleted})
}

// SaveHandler performs an explicit user-initiated save. Unlike auto-saves,
// failures here surface to the client.
func (h *APIHandler) SaveHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	session, err := h.questionnaireService.Save(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Saving your answers failed. Please try again.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// SubmitHandler completes the questionnaire from its terminal question.
func (h *APIHandler) SubmitHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	session, err := h.questionnaireService.Submit(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "isCompleted": session.IsCompleted})
}

// CategoriesHandler lists the editable sections with per-flow availability.
func (h *APIHandler) CategoriesHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	categories, err := h.categoryEditor.Categories(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// StartCategoryHandler jumps the editor into a section.
func (h *APIHandler) StartCategoryHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	categoryID := c.Param("categoryID")
	var req startCategoryRequest
	_ = c.ShouldBindJSON(&req) // body is optional; defaults to the primary variant

	question, value, err := h.categoryEditor.StartCategory(applicantID, categoryID, req.CoApplicant)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": question, "value": value, "autoNavigate": h.autoNavigate(question)})
}

// EditorQuestionHandler returns the editor's current state and question.
func (h *APIHandler) EditorQuestionHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	phase, question, value, err := h.categoryEditor.CurrentQuestion(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load the section editor.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase": phase, "question": question, "value": value, "autoNavigate": h.autoNavigate(question)})
}

// EditorRecordAnswerHandler writes a field edit into the editor's working copy.
func (h *APIHandler) EditorRecordAnswerHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	questionID, value, ok := h.bindAnswer(c)
	if !ok {
		return
	}
	if err := h.categoryEditor.RecordAnswer(applicantID, questionID, value); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EditorContinueHandler advances within the section being edited; reaching the
// category boundary commits the working copy and returns to category select.
func (h *APIHandler) EditorContinueHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	questionID, value, ok := h.bindAnswer(c)
	if !ok {
		return
	}
	next, finished, fieldErrs, err := h.categoryEditor.SubmitAnswer(applicantID, questionID, value)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if len(fieldErrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"fieldErrors": fieldErrs, "question": next})
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": next, "finished": finished, "autoNavigate": h.autoNavigate(next)})
}

// EditorBackHandler exits the section, committing the working copy.
func (h *APIHandler) EditorBackHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	if err := h.categoryEditor.Back(applicantID); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddCoSignerHandler performs the solo-to-co-signer bootstrap.
func (h *APIHandler) AddCoSignerHandler(c *gin.Context) {
	applicantID := c.Param("applicantID")
	question, err := h.categoryEditor.AddCoSigner(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": question})
}

func (h *APIHandler) bindAnswer(c *gin.Context) (int, interface{}, bool) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload.", err)
		return 0, nil, false
	}
	questionID, err := utils.NormalizeQuestionID(req.QuestionID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return 0, nil, false
	}
	return questionID, req.Value, true
}

func (h *APIHandler) respondWithQuestion(c *gin.Context, applicantID string, question *models.Question, session *models.QuestionnaireSession) {
	progress, _, err := h.questionnaireService.Progress(applicantID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to compute progress.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"question":     question,
		"loading":      question == nil,
		"autoNavigate": h.autoNavigate(question),
		"session":      session,
		"progress":     progress,
	})
}
