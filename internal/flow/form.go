package flow

import (
	"context"

	"github.com/arcosum/arcobot/internal/models"
)

// FieldSpec describes one question in a division form.
type FieldSpec struct {
	// Name is the key the validated answer is stored under.
	Name string

	// Prompt renders the question. It may read earlier answers from the
	// session (e.g. to greet the customer by first name).
	Prompt func(s *FormSession) string

	// Validate normalizes the answer. It returns the value to store and
	// whether the input was acceptable.
	Validate func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool)

	// Invalid renders the retry message sent on a rejected answer. The
	// attempt counter suffix is appended by the engine.
	Invalid func(s *FormSession) string

	// SkipIf reports whether this field does not apply given earlier
	// answers. Skipped fields are filled from AutoFill when set.
	SkipIf func(s *FormSession) bool

	// AutoFill provides the stored value for a skipped field.
	AutoFill func(s *FormSession) string

	// NoInterrupt disables division switch detection for this field.
	// Set it when a legitimate answer names a division.
	NoInterrupt bool
}

// FormDefinition is the complete script for one division funnel.
type FormDefinition struct {
	Division    models.Division
	Intro       string
	Fields      []FieldSpec
	VendorPhone string
	LeadType    models.LeadType
	LeadScore   int

	// Summary renders the seller-facing one-liner stored with the lead.
	Summary func(s *FormSession) string

	// Confirm renders the request summary shown before submission.
	Confirm func(s *FormSession) string

	// Completion renders the goodbye sent after the customer confirms.
	Completion func(s *FormSession) string

	// VendorNotice renders the alert sent to the division vendor.
	VendorNotice func(s *FormSession) string

	// ShowMenuAfter re-sends the main menu once the form completes.
	ShowMenuAfter bool
}

// lead builds the stored analysis for a completed form.
func (d *FormDefinition) lead(s *FormSession) *models.LeadAnalysis {
	info := make(map[string]string, s.Data.Len())
	for field, value := range s.Data.AllFromFront() {
		info[field] = value
	}
	return &models.LeadAnalysis{
		PhoneNumber:  s.Phone,
		IsQualified:  true,
		LeadScore:    d.LeadScore,
		LeadType:     d.LeadType,
		Division:     d.Division,
		Summary:      d.Summary(s),
		ProjectInfo:  info,
		DataComplete: true,
	}
}
