package services

import (
	"fmt"
	"log"

	"roost/models"
)

// Category identifiers. Each question in the catalog carries exactly one of
// these; the category editor uses them for out-of-order section editing.
const (
	CategoryGettingStarted    = "getting_started"
	CategoryPersonalDetails   = "personal_details"
	CategoryIncomeDetails     = "income_details"
	CategoryAssetsDownPayment = "assets_downpayment"
	CategoryConfirmation      = "confirmation"
)

// Well-known question ids referenced by the engine outside plain traversal.
const (
	soloNameQuestionID        = 2   // shared name/contact collection
	coPrimaryNameQuestionID   = 100 // primary applicant name in the co-signer flow
	coApplicantNameQuestionID = 101 // the co-signer's own name question
)

// categoryStart holds the per-flow starting question ids of one category.
// Zero means the category has no variant in that position.
type categoryStart struct {
	Solo        int // solo flow entry point
	CoPrimary   int // primary applicant entry point in the co-signer flow
	CoApplicant int // co-signer entry point in the co-signer flow
}

// QuestionCatalog is the static, read-only question graph plus the lookup
// tables that live next to it: per-flow category entry points and the declared
// solo-to-co-primary answer copy map used by the add-co-signer bootstrap.
type QuestionCatalog struct {
	questions      []models.Question
	questionsByID  map[int]*models.Question
	categories     []models.CategoryInfo
	categoryStarts map[string]categoryStart
	copyPairs      [][2]int
}

// NewQuestionCatalog builds a catalog from the given definitions and validates
// them: every question needs a category, a recognized flow, and resolvable
// successors; every category start and copy pair must reference real nodes.
// Catalog errors are authoring mistakes, so they fail construction instead of
// surfacing at traversal time.
func NewQuestionCatalog(
	questions []models.Question,
	categories []models.CategoryInfo,
	starts map[string]categoryStart,
	copyPairs [][2]int,
) (*QuestionCatalog, error) {
	store := make([]models.Question, len(questions))
	copy(store, questions)

	byID := make(map[int]*models.Question, len(store))
	for i := range store {
		q := &store[i]
		if q.ID <= 0 {
			return nil, fmt.Errorf("catalog: question at index %d has invalid id %d", i, q.ID)
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate question id %d", q.ID)
		}
		byID[q.ID] = q
	}

	for _, q := range store {
		if q.Category == "" {
			return nil, fmt.Errorf("catalog: question %d has no category", q.ID)
		}
		switch q.Flow {
		case models.FlowShared, models.FlowSolo, models.FlowCoPrimary, models.FlowCoApplicant:
		default:
			return nil, fmt.Errorf("catalog: question %d has unknown flow %q", q.ID, q.Flow)
		}
		if q.IsTerminal() {
			if q.NextQuestion != 0 || q.HasBranchMap() {
				return nil, fmt.Errorf("catalog: terminal question %d declares a successor", q.ID)
			}
			continue
		}
		if q.NextQuestion != 0 {
			if _, ok := byID[q.NextQuestion]; !ok {
				return nil, fmt.Errorf("catalog: question %d points at missing successor %d", q.ID, q.NextQuestion)
			}
		}
		for answer, target := range q.NextQuestionMap {
			if _, ok := byID[target]; !ok {
				return nil, fmt.Errorf("catalog: question %d branch %q points at missing successor %d", q.ID, answer, target)
			}
		}
		// Every option must resolve somewhere: through the branch map or the
		// default successor.
		for _, opt := range q.Options {
			if _, mapped := q.NextQuestionMap[opt.Value]; !mapped && q.NextQuestion == 0 {
				return nil, fmt.Errorf("catalog: question %d option %q has no reachable successor", q.ID, opt.Value)
			}
		}
		if !q.HasBranchMap() && q.NextQuestion == 0 {
			return nil, fmt.Errorf("catalog: non-terminal question %d has no successor at all", q.ID)
		}
	}

	for _, cat := range categories {
		start, ok := starts[cat.ID]
		if !ok {
			return nil, fmt.Errorf("catalog: category %q has no start entry", cat.ID)
		}
		for _, id := range []int{start.Solo, start.CoPrimary, start.CoApplicant} {
			if id == 0 {
				continue
			}
			q, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("catalog: category %q starts at missing question %d", cat.ID, id)
			}
			if q.Category != cat.ID {
				return nil, fmt.Errorf("catalog: category %q starts at question %d which belongs to %q", cat.ID, id, q.Category)
			}
		}
	}

	for _, pair := range copyPairs {
		src, ok := byID[pair[0]]
		if !ok {
			return nil, fmt.Errorf("catalog: copy pair source %d does not exist", pair[0])
		}
		dst, ok := byID[pair[1]]
		if !ok {
			return nil, fmt.Errorf("catalog: copy pair target %d does not exist", pair[1])
		}
		if src.Flow != models.FlowSolo && src.Flow != models.FlowShared {
			return nil, fmt.Errorf("catalog: copy pair source %d is not a solo/shared question", pair[0])
		}
		if dst.Flow != models.FlowCoPrimary {
			return nil, fmt.Errorf("catalog: copy pair target %d is not a co-primary question", pair[1])
		}
	}

	log.Printf("INFO: [QuestionCatalog] Loaded %d questions across %d categories.", len(store), len(categories))
	return &QuestionCatalog{
		questions:      store,
		questionsByID:  byID,
		categories:     categories,
		categoryStarts: starts,
		copyPairs:      copyPairs,
	}, nil
}

// NewDefaultQuestionCatalog builds the catalog from the authored mortgage
// onboarding question set. Definition errors here are programming errors, so
// this panics rather than returning an error; it runs once at startup.
func NewDefaultQuestionCatalog() *QuestionCatalog {
	catalog, err := NewQuestionCatalog(
		defaultQuestions(),
		defaultCategories(),
		defaultCategoryStarts(),
		defaultCoSignerCopyPairs(),
	)
	if err != nil {
		log.Fatalf("FATAL: [QuestionCatalog] Invalid built-in question catalog: %v", err)
	}
	return catalog
}

// GetQuestion looks a question up by id.
func (c *QuestionCatalog) GetQuestion(id int) (*models.Question, bool) {
	q, ok := c.questionsByID[id]
	return q, ok
}

// Questions returns the catalog nodes in authored order.
func (c *QuestionCatalog) Questions() []models.Question {
	return c.questions
}

// Categories returns the logical sections in display order.
func (c *QuestionCatalog) Categories() []models.CategoryInfo {
	return c.categories
}

// CategoryStart resolves the starting question id of a category for the
// requested flow variant. coApplicant selects the co-signer's own variant and
// is only meaningful when coSigner is true.
func (c *QuestionCatalog) CategoryStart(categoryID string, coSigner, coApplicant bool) (int, bool) {
	start, ok := c.categoryStarts[categoryID]
	if !ok {
		return 0, false
	}
	switch {
	case coSigner && coApplicant:
		if start.CoApplicant == 0 {
			return 0, false
		}
		return start.CoApplicant, true
	case coSigner:
		if start.CoPrimary == 0 {
			return 0, false
		}
		return start.CoPrimary, true
	default:
		if start.Solo == 0 {
			return 0, false
		}
		return start.Solo, true
	}
}

// FlowQuestionIDs returns every question id reachable in the given flow,
// including shared and terminal questions. Terminal questions count toward
// progress the same as any other node.
func (c *QuestionCatalog) FlowQuestionIDs(coSigner bool) []int {
	var ids []int
	for _, q := range c.questions {
		switch q.Flow {
		case models.FlowShared:
			ids = append(ids, q.ID)
		case models.FlowSolo:
			if !coSigner {
				ids = append(ids, q.ID)
			}
		case models.FlowCoPrimary, models.FlowCoApplicant:
			if coSigner {
				ids = append(ids, q.ID)
			}
		}
	}
	return ids
}

// CoSignerCopyPairs returns the declared solo-to-co-primary answer copy map
// used by the add-co-signer bootstrap, as (source, target) id pairs.
func (c *QuestionCatalog) CoSignerCopyPairs() [][2]int {
	return c.copyPairs
}

// IsNameCollection reports whether a question collects applicant names. These
// questions never auto-navigate: advancing requires an explicit continue so
// name validation can run first.
func (c *QuestionCatalog) IsNameCollection(id int) bool {
	return id == soloNameQuestionID || id == coPrimaryNameQuestionID || id == coApplicantNameQuestionID
}

// DefaultResponses returns the seed answers applied at questionnaire start.
// The income questions default their toggles to "no" and the asset questions
// to an empty item list so validation never sees a missing record on first
// render.
func DefaultResponses() models.ResponseMap {
	return models.ResponseMap{
		"11":  map[string]interface{}{"bonuses": "no", "benefits": "no"},
		"112": map[string]interface{}{"bonuses": "no", "benefits": "no"},
		"109": map[string]interface{}{"bonuses": "no", "benefits": "no"},
		"13":  map[string]interface{}{"items": []interface{}{}},
		"116": map[string]interface{}{"items": []interface{}{}},
	}
}

func defaultCategories() []models.CategoryInfo {
	return []models.CategoryInfo{
		{ID: CategoryGettingStarted, Label: "Getting Started"},
		{ID: CategoryPersonalDetails, Label: "Personal Details", HasCoApplicantVariant: true},
		{ID: CategoryIncomeDetails, Label: "Income Details", HasCoApplicantVariant: true},
		{ID: CategoryAssetsDownPayment, Label: "Assets & Down Payment"},
		{ID: CategoryConfirmation, Label: "Review & Confirm"},
	}
}

func defaultCategoryStarts() map[string]categoryStart {
	return map[string]categoryStart{
		CategoryGettingStarted:    {Solo: 1, CoPrimary: 1},
		CategoryPersonalDetails:   {Solo: 6, CoPrimary: 100, CoApplicant: 101},
		CategoryIncomeDetails:     {Solo: 9, CoPrimary: 108, CoApplicant: 107},
		CategoryAssetsDownPayment: {Solo: 12, CoPrimary: 114},
		CategoryConfirmation:      {Solo: 14, CoPrimary: 118},
	}
}

// defaultCoSignerCopyPairs declares which solo answers seed their co-primary
// counterparts when a co-signer is added mid-flow. The pairs live here, next
// to the catalog, and are validated against it at startup.
func defaultCoSignerCopyPairs() [][2]int {
	return [][2]int{
		{2, 100},  // name and contact
		{6, 102},  // date of birth / SIN
		{7, 104},  // current address
		{8, 106},  // housing situation
		{9, 108},  // employment status
		{10, 110}, // employer details
		{11, 112}, // income
		{12, 114}, // down payment
		{13, 116}, // assets
	}
}

// Reusable field groups. The solo and co-signer paths are authored as
// separate nodes so answers can diverge once a co-signer joins, but the field
// schemas are identical.
func nameContactFields() []models.Field {
	return []models.Field{
		{Key: "firstName", Label: "First name", Required: true},
		{Key: "lastName", Label: "Last name", Required: true},
		{Key: "email", Label: "Email", Keyboard: "email", Validation: models.ValidationEmail, Required: true},
		{Key: "phone", Label: "Phone number", Keyboard: "phone", Validation: models.ValidationPhone, Required: true},
	}
}

func birthSINFields() []models.Field {
	return []models.Field{
		{Key: "dateOfBirth", Label: "Date of birth", Keyboard: "numeric", Required: true},
		{Key: "sin", Label: "Social Insurance Number", Keyboard: "numeric", Validation: models.ValidationSIN},
	}
}

func addressFields() []models.Field {
	return []models.Field{
		{Key: "street", Label: "Street address", Required: true},
		{Key: "city", Label: "City", Required: true},
		{Key: "province", Label: "Province", Required: true},
		{Key: "postalCode", Label: "Postal code", Required: true},
	}
}

func employerFields() []models.Field {
	return []models.Field{
		{Key: "employerName", Label: "Employer name", Required: true},
		{Key: "jobTitle", Label: "Job title", Required: true},
		{Key: "yearsAtJob", Label: "Years at this job", Keyboard: "numeric"},
	}
}

func incomeFields() []models.Field {
	return []models.Field{
		{Key: "income", Label: "Gross annual income", Keyboard: "numeric", Required: true},
		{Key: "bonuses", Label: "Do you earn bonuses or commission?", Required: true},
		{Key: "benefits", Label: "Do you receive taxable benefits?", Required: true},
		// Required only when bonuses or benefits is answered "yes"; the
		// pre-approval gate enforces that.
		{Key: "bonusComissionAnnualAmount", Label: "Annual bonus / commission amount", Keyboard: "numeric"},
	}
}

func downPaymentFields() []models.Field {
	return []models.Field{
		{Key: "downPaymentAmount", Label: "Down payment amount", Keyboard: "numeric", Required: true},
		{Key: "downPaymentSource", Label: "Source of down payment", Required: true},
	}
}

func assetItemFields() []models.Field {
	return []models.Field{
		{Key: "assetType", Label: "Asset type", Required: true},
		{Key: "assetValue", Label: "Approximate value", Keyboard: "numeric", Required: true},
	}
}

func employmentOptions() []models.Option {
	return []models.Option{
		{Value: "full_time", Label: "Employed full-time"},
		{Value: "part_time", Label: "Employed part-time"},
		{Value: "self_employed", Label: "Self-employed"},
		{Value: "retired", Label: "Retired"},
		{Value: "not_employed", Label: "Not currently employed"},
	}
}

// defaultQuestions is the authored mortgage onboarding question graph.
// Shared ids 1-5 are asked in every flow; ids 6-14 are the solo path;
// ids 100-116 (even) are the primary applicant's path in the co-signer flow;
// ids 101-109 (odd) are the co-signer's own sub-path; 118 closes the
// co-signer flow.
func defaultQuestions() []models.Question {
	return []models.Question{
		// --- Getting started (shared) ---
		{
			ID: 1, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: CategoryGettingStarted,
			Prompt: "What brings you to Roost today?",
			Options: []models.Option{
				{Value: "buy_home", Label: "Buying a home"},
				{Value: "renew_mortgage", Label: "Renewing my mortgage"},
				{Value: "refinance", Label: "Refinancing"},
			},
			NextQuestion: 2,
		},
		{
			ID: 2, Type: models.QuestionTypeForm, Flow: models.FlowShared, Category: CategoryGettingStarted,
			Prompt:       "Let's start with your name and how to reach you.",
			Fields:       nameContactFields(),
			NextQuestion: 3,
		},
		{
			ID: 3, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: CategoryGettingStarted,
			Prompt: "When are you hoping to move in?",
			Options: []models.Option{
				{Value: "within_3_months", Label: "Within 3 months"},
				{Value: "three_to_six_months", Label: "3 to 6 months"},
				{Value: "just_looking", Label: "Just looking for now"},
			},
			NextQuestion: 4,
		},
		{
			ID: 4, Type: models.QuestionTypeDropdown, Flow: models.FlowShared, Category: CategoryGettingStarted,
			Prompt: "What kind of property are you looking for?",
			Options: []models.Option{
				{Value: "detached", Label: "Detached house"},
				{Value: "semi_detached", Label: "Semi-detached"},
				{Value: "townhouse", Label: "Townhouse"},
				{Value: "condo", Label: "Condo"},
			},
			NextQuestion: 5,
		},
		{
			ID: 5, Type: models.QuestionTypeChoice, Flow: models.FlowShared, Category: CategoryGettingStarted,
			Prompt: "Who will be on this mortgage?",
			Options: []models.Option{
				{Value: models.FlowAnswerJustMe, Label: "Just me"},
				{Value: models.FlowAnswerCoSigner, Label: "Me and a co-signer"},
			},
			NextQuestionMap: map[string]int{
				models.FlowAnswerJustMe:   6,
				models.FlowAnswerCoSigner: 100,
			},
		},

		// --- Solo flow ---
		{
			ID: 6, Type: models.QuestionTypeForm, Flow: models.FlowSolo, Category: CategoryPersonalDetails,
			Prompt:       "A few personal details.",
			Fields:       birthSINFields(),
			NextQuestion: 7,
		},
		{
			ID: 7, Type: models.QuestionTypeForm, Flow: models.FlowSolo, Category: CategoryPersonalDetails,
			Prompt:       "Where do you live right now?",
			Fields:       addressFields(),
			NextQuestion: 8,
		},
		{
			ID: 8, Type: models.QuestionTypeChoice, Flow: models.FlowSolo, Category: CategoryPersonalDetails,
			Prompt: "What's your current housing situation?",
			Options: []models.Option{
				{Value: "rent", Label: "I rent"},
				{Value: "own_selling", Label: "I own and will sell before buying"},
				{Value: "own_keeping", Label: "I own and plan to keep it"},
			},
			NextQuestion: 9,
		},
		{
			ID: 9, Type: models.QuestionTypeDropdown, Flow: models.FlowSolo, Category: CategoryIncomeDetails,
			Prompt:       "What's your employment status?",
			Options:      employmentOptions(),
			NextQuestion: 10,
		},
		{
			ID: 10, Type: models.QuestionTypeForm, Flow: models.FlowSolo, Category: CategoryIncomeDetails,
			Prompt:       "Tell us about your employer.",
			Fields:       employerFields(),
			NextQuestion: 11,
		},
		{
			ID: 11, Type: models.QuestionTypeConditionalForm, Flow: models.FlowSolo, Category: CategoryIncomeDetails,
			Prompt:       "What do you earn?",
			Fields:       incomeFields(),
			NextQuestion: 12,
		},
		{
			ID: 12, Type: models.QuestionTypeNumeric, Flow: models.FlowSolo, Category: CategoryAssetsDownPayment,
			Prompt:       "How much do you have for a down payment?",
			Fields:       downPaymentFields(),
			NextQuestion: 13,
		},
		{
			ID: 13, Type: models.QuestionTypeConditionalList, Flow: models.FlowSolo, Category: CategoryAssetsDownPayment,
			Prompt:       "Any other assets we should know about?",
			ItemFields:   assetItemFields(),
			NextQuestion: 14,
		},
		{
			ID: 14, Type: models.QuestionTypeTerminal, Flow: models.FlowSolo, Category: CategoryConfirmation,
			Prompt: "That's everything we need. Review your answers and submit when ready.",
		},

		// --- Co-signer flow, primary applicant ---
		{
			ID: 100, Type: models.QuestionTypeForm, Flow: models.FlowCoPrimary, Category: CategoryPersonalDetails,
			Prompt:       "Your name and contact details.",
			Fields:       nameContactFields(),
			NextQuestion: 102,
		},
		{
			ID: 102, Type: models.QuestionTypeForm, Flow: models.FlowCoPrimary, Category: CategoryPersonalDetails,
			Prompt:       "A few personal details.",
			Fields:       birthSINFields(),
			NextQuestion: 104,
		},
		{
			ID: 104, Type: models.QuestionTypeForm, Flow: models.FlowCoPrimary, Category: CategoryPersonalDetails,
			Prompt:       "Where do you live right now?",
			Fields:       addressFields(),
			NextQuestion: 106,
		},
		{
			ID: 106, Type: models.QuestionTypeChoice, Flow: models.FlowCoPrimary, Category: CategoryPersonalDetails,
			Prompt: "What's your current housing situation?",
			Options: []models.Option{
				{Value: "rent", Label: "I rent"},
				{Value: "own_selling", Label: "I own and will sell before buying"},
				{Value: "own_keeping", Label: "I own and plan to keep it"},
			},
			NextQuestion: 108,
		},
		{
			ID: 108, Type: models.QuestionTypeDropdown, Flow: models.FlowCoPrimary, Category: CategoryIncomeDetails,
			Prompt:       "What's your employment status?",
			Options:      employmentOptions(),
			NextQuestion: 110,
		},
		{
			ID: 110, Type: models.QuestionTypeForm, Flow: models.FlowCoPrimary, Category: CategoryIncomeDetails,
			Prompt:       "Tell us about your employer.",
			Fields:       employerFields(),
			NextQuestion: 112,
		},
		{
			ID: 112, Type: models.QuestionTypeConditionalForm, Flow: models.FlowCoPrimary, Category: CategoryIncomeDetails,
			Prompt:       "What do you earn?",
			Fields:       incomeFields(),
			NextQuestion: 114,
		},
		{
			ID: 114, Type: models.QuestionTypeNumeric, Flow: models.FlowCoPrimary, Category: CategoryAssetsDownPayment,
			Prompt:       "How much do you have for a down payment?",
			Fields:       downPaymentFields(),
			NextQuestion: 116,
		},
		{
			ID: 116, Type: models.QuestionTypeConditionalList, Flow: models.FlowCoPrimary, Category: CategoryAssetsDownPayment,
			Prompt:       "Any other assets we should know about?",
			ItemFields:   assetItemFields(),
			NextQuestion: 101,
		},

		// --- Co-signer flow, co-applicant ---
		{
			ID: 101, Type: models.QuestionTypeForm, Flow: models.FlowCoApplicant, Category: CategoryPersonalDetails,
			Prompt:       "Now your co-signer. What's their name and contact info?",
			Fields:       nameContactFields(),
			NextQuestion: 103,
		},
		{
			ID: 103, Type: models.QuestionTypeForm, Flow: models.FlowCoApplicant, Category: CategoryPersonalDetails,
			Prompt:       "Your co-signer's personal details.",
			Fields:       birthSINFields(),
			NextQuestion: 105,
		},
		{
			ID: 105, Type: models.QuestionTypeForm, Flow: models.FlowCoApplicant, Category: CategoryPersonalDetails,
			Prompt:       "Your co-signer's current address.",
			Fields:       addressFields(),
			NextQuestion: 107,
		},
		{
			ID: 107, Type: models.QuestionTypeDropdown, Flow: models.FlowCoApplicant, Category: CategoryIncomeDetails,
			Prompt:       "Your co-signer's employment status?",
			Options:      employmentOptions(),
			NextQuestion: 109,
		},
		{
			ID: 109, Type: models.QuestionTypeConditionalForm, Flow: models.FlowCoApplicant, Category: CategoryIncomeDetails,
			Prompt:       "What does your co-signer earn?",
			Fields:       incomeFields(),
			NextQuestion: 118,
		},
		{
			ID: 118, Type: models.QuestionTypeTerminal, Flow: models.FlowCoPrimary, Category: CategoryConfirmation,
			Prompt: "That's everything we need from both of you. Review and submit when ready.",
		},
	}
}
