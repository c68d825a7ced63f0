package flow

import (
	"strings"

	"github.com/arcosum/arcobot/internal/models"
)

// divisionKeywords maps each division to the words that signal a customer
// wants to switch to it mid-form.
var divisionKeywords = map[models.Division][]string{
	models.DivisionTechos:      {"techo", "arcotecho", "estructura", "metalica", "metálica"},
	models.DivisionRolados:     {"rolados", "rolado", "lamina", "lámina", "laminado", "calibre"},
	models.DivisionSuministros: {"suministros", "suministro"},
	models.DivisionOtros:       {"otros", "otra cosa", "otra division", "otra división", "consulta"},
}

// DetectDivisionChange reports which division a message is asking for,
// ignoring the division the customer is already in so that on-topic form
// answers (e.g. "lámina pintro" inside the rolados form) are not hijacked.
// Returns DivisionUnassigned when no switch is detected.
func DetectDivisionChange(message string, current models.Division) models.Division {
	lower := strings.ToLower(message)
	for _, division := range []models.Division{models.DivisionTechos, models.DivisionRolados, models.DivisionSuministros, models.DivisionOtros} {
		if division == current {
			continue
		}
		for _, keyword := range divisionKeywords[division] {
			if strings.Contains(lower, keyword) {
				return division
			}
		}
	}
	return models.DivisionUnassigned
}
