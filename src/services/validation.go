package services

import (
	"regexp"
	"strings"

	"roost/models"
)

// FieldErrors maps a field key (or "answer" for whole-question problems) to a
// user-facing message. Validation errors are local and recoverable: they block
// navigation and are never sent to the backend.
type FieldErrors map[string]string

// Empty reports whether validation passed.
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateAnswer runs the generic checks for a question: a required selection
// for choice-style questions, required fields present for form-style
// questions, and format checks (email, phone, SIN) on any field that carries
// a validation kind.
func ValidateAnswer(q *models.Question, answer interface{}) FieldErrors {
	errs := FieldErrors{}

	switch q.Type {
	case models.QuestionTypeChoice, models.QuestionTypeDropdown, models.QuestionTypeToggle:
		scalar, ok := models.ScalarAnswer(answer)
		if !ok || strings.TrimSpace(scalar) == "" {
			errs["answer"] = "Please make a selection to continue."
		}
		return errs
	case models.QuestionTypeTerminal:
		return errs
	}

	for _, f := range questionFields(q) {
		value := strings.TrimSpace(models.RecordField(answer, f.Key))
		if f.Required && value == "" {
			errs[f.Key] = f.Label + " is required."
			continue
		}
		if value == "" {
			continue
		}
		switch f.Validation {
		case models.ValidationEmail:
			if !emailPattern.MatchString(value) {
				errs[f.Key] = "Please enter a valid email address."
			}
		case models.ValidationPhone:
			if len(digitsOf(value)) < 10 {
				errs[f.Key] = "Please enter a valid phone number."
			}
		case models.ValidationSIN:
			if len(digitsOf(value)) != 9 {
				errs[f.Key] = "A Social Insurance Number has 9 digits."
			}
		}
	}
	return errs
}

// ValidatePreApproval is the stricter gate on pre-approval-critical fields,
// applied in addition to the generic checks before advancing: the income
// amount, the down payment amount, and the bonus/commission amount when the
// bonuses or benefits toggle on the same question is answered "yes".
func ValidatePreApproval(q *models.Question, answer interface{}) FieldErrors {
	errs := FieldErrors{}
	fields := questionFields(q)

	if hasField(fields, "income") {
		if strings.TrimSpace(models.RecordField(answer, "income")) == "" {
			errs["income"] = "Your annual income is needed for pre-approval."
		}
		bonuses := models.RecordField(answer, "bonuses")
		benefits := models.RecordField(answer, "benefits")
		if bonuses == "yes" || benefits == "yes" {
			if strings.TrimSpace(models.RecordField(answer, "bonusComissionAnnualAmount")) == "" {
				errs["bonusComissionAnnualAmount"] = "Enter your annual bonus or commission amount."
			}
		}
	}

	if hasField(fields, "downPaymentAmount") {
		if strings.TrimSpace(models.RecordField(answer, "downPaymentAmount")) == "" {
			errs["downPaymentAmount"] = "Your down payment amount is needed for pre-approval."
		}
	}
	return errs
}

// questionFields flattens a question's field schema, including multi-section
// forms.
func questionFields(q *models.Question) []models.Field {
	if len(q.Sections) == 0 {
		return q.Fields
	}
	var fields []models.Field
	fields = append(fields, q.Fields...)
	for _, s := range q.Sections {
		fields = append(fields, s.Fields...)
	}
	return fields
}

func hasField(fields []models.Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
