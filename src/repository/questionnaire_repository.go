package repository

import (
	"errors"
	"fmt"
	"log"

	"roost/models"

	"gorm.io/gorm"
)

// QuestionnaireRepository defines the interface for persisting questionnaire
// sessions. Saves are full-snapshot overwrites: the engine always ships the
// entire current state, never a diff, so out-of-order save completion is
// harmless (last write wins).
type QuestionnaireRepository interface {
	CreateSession(session *models.QuestionnaireSession) error
	GetSessionByApplicantID(applicantID string) (*models.QuestionnaireSession, error)
	SaveSnapshot(session *models.QuestionnaireSession) error
}

type questionnaireRepository struct {
	db *gorm.DB
}

// NewQuestionnaireRepository creates a new instance of QuestionnaireRepository.
func NewQuestionnaireRepository(db *gorm.DB) QuestionnaireRepository {
	return &questionnaireRepository{db: db}
}

// CreateSession creates a new questionnaire session record.
func (r *questionnaireRepository) CreateSession(session *models.QuestionnaireSession) error {
	if session == nil {
		log.Printf("ERROR: [QuestionnaireRepository] CreateSession: session cannot be nil")
		return errors.New("session cannot be nil")
	}
	if session.ApplicantID == "" {
		log.Printf("ERROR: [QuestionnaireRepository] CreateSession: applicant ID cannot be empty")
		return errors.New("applicant ID cannot be empty")
	}
	if err := r.db.Create(session).Error; err != nil {
		log.Printf("ERROR: [QuestionnaireRepository] Failed to create session for applicant %s: %v", session.ApplicantID, err)
		return fmt.Errorf("failed to create session for applicant %s: %w", session.ApplicantID, err)
	}
	log.Printf("INFO: [QuestionnaireRepository] Created session ID %d for applicant %s.", session.ID, session.ApplicantID)
	return nil
}

// GetSessionByApplicantID retrieves the session for an applicant.
// Returns (nil, nil) when no session exists yet.
func (r *questionnaireRepository) GetSessionByApplicantID(applicantID string) (*models.QuestionnaireSession, error) {
	var session models.QuestionnaireSession
	err := r.db.Where("applicant_id = ?", applicantID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [QuestionnaireRepository] Failed to retrieve session for applicant %s: %v", applicantID, err)
		return nil, fmt.Errorf("failed to retrieve session for applicant %s: %w", applicantID, err)
	}
	return &session, nil
}

// SaveSnapshot overwrites the stored session with the full current state.
func (r *questionnaireRepository) SaveSnapshot(session *models.QuestionnaireSession) error {
	if session == nil {
		log.Printf("ERROR: [QuestionnaireRepository] SaveSnapshot: session cannot be nil")
		return errors.New("session cannot be nil")
	}
	if session.ID == 0 {
		return r.CreateSession(session)
	}
	if err := r.db.Save(session).Error; err != nil {
		log.Printf("ERROR: [QuestionnaireRepository] Failed to save snapshot for applicant %s: %v", session.ApplicantID, err)
		return fmt.Errorf("failed to save snapshot for applicant %s: %w", session.ApplicantID, err)
	}
	return nil
}
