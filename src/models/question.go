package models

// QuestionType defines the render/interaction kind of a questionnaire question.
type QuestionType string

const (
	QuestionTypeChoice         QuestionType = "choice"          // One-of-N selection buttons
	QuestionTypeNumeric        QuestionType = "numeric"         // Numeric entry form (amounts)
	QuestionTypeForm           QuestionType = "form"            // Flat free-form field group
	QuestionTypeMultiSection   QuestionType = "multi_section"   // Form split into titled sections
	QuestionTypeDropdown       QuestionType = "dropdown"        // Single select from a list
	QuestionTypeTextArea       QuestionType = "textarea"        // Long free text
	QuestionTypeToggle         QuestionType = "toggle"          // Binary yes/no switch
	QuestionTypeConditionalForm QuestionType = "conditional_form" // Form with fields required conditionally on sibling values
	QuestionTypeConditionalList QuestionType = "conditional_list" // Toggle gating a repeating item collection
	QuestionTypeTerminal       QuestionType = "terminal"        // Confirmation/end node, no successor
)

// Flow classifies which traversal path a question belongs to.
// Every question carries exactly one flow tag; the engine never infers
// flow membership from id ranges or parity.
type Flow string

const (
	FlowShared      Flow = "shared"       // Asked regardless of applicant count (ids 1-5)
	FlowSolo        Flow = "solo"         // Single-applicant path only
	FlowCoPrimary   Flow = "co_primary"   // Primary applicant's path within the co-signer flow
	FlowCoApplicant Flow = "co_applicant" // The co-signer's own sub-path
)

// FieldValidation names the format check applied to a form field's value.
type FieldValidation string

const (
	ValidationNone  FieldValidation = ""
	ValidationEmail FieldValidation = "email"
	ValidationPhone FieldValidation = "phone"
	ValidationSIN   FieldValidation = "sin"
)

// Field describes one sub-field of a form-style question.
type Field struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Keyboard   string          `json:"keyboard,omitempty"` // Keyboard hint for the renderer (e.g. "numeric", "email")
	Validation FieldValidation `json:"validation,omitempty"`
	Required   bool            `json:"required"`
}

// Option is one selectable value of a choice or dropdown question.
type Option struct {
	Value string `json:"value"` // Machine-readable value, used as branch-map key
	Label string `json:"label"` // Human-readable label
}

// Section groups fields of a multi-section form question.
type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Question is a node of the questionnaire graph. Catalog questions are
// immutable at runtime; the engine only reads them.
type Question struct {
	ID       int          `json:"id"`
	Type     QuestionType `json:"type"`
	Flow     Flow         `json:"flow"`
	Category string       `json:"category"`
	Prompt   string       `json:"prompt"`

	Options    []Option  `json:"options,omitempty"`    // choice/dropdown/toggle
	Fields     []Field   `json:"fields,omitempty"`     // form-style questions
	Sections   []Section `json:"sections,omitempty"`   // multi-section forms
	ItemFields []Field   `json:"itemFields,omitempty"` // repeating-list item schema

	// NextQuestion is the default successor id; 0 means no successor (terminal).
	NextQuestion int `json:"nextQuestion,omitempty"`
	// NextQuestionMap maps a scalar answer value to a successor id and takes
	// precedence over NextQuestion when the current answer matches a key.
	NextQuestionMap map[string]int `json:"nextQuestionMap,omitempty"`
}

// IsTerminal reports whether the question ends its flow.
func (q *Question) IsTerminal() bool {
	return q.Type == QuestionTypeTerminal
}

// HasBranchMap reports whether the question routes by answer value.
func (q *Question) HasBranchMap() bool {
	return len(q.NextQuestionMap) > 0
}

// CategoryInfo provides display information for a logical questionnaire section.
type CategoryInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// HasCoApplicantVariant marks categories that have a separate co-signer
	// starting point in the co-signer flow.
	HasCoApplicantVariant bool `json:"hasCoApplicantVariant"`
}
