package flow

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/arcosum/arcobot/internal/genai"
)

var (
	fullNameRe = regexp.MustCompile(`^[a-záéíóúñA-ZÁÉÍÓÚÑ\s]+$`)
	// tonnage like "100 kg", "2 toneladas", "1.5 ton"
	tonnageRe = regexp.MustCompile(`(?i)(\d+[\.,]?\d*)\s*(kg|kilogramos?|kilos?|toneladas?|tons?|t)\b`)
	// roll dimensions like "3x30", "1.5 x 2", "20x30"
	dimensionsRe = regexp.MustCompile(`(\d+[\.,]?\d*)\s*x\s*(\d+[\.,]?\d*)`)
	// measured dimensions like "2 metros x 3 metros", "6 pies x 9 pies"
	measuredDimsRe = regexp.MustCompile(`(?i)(\d+[\.,]?\d*)\s*(metros|m|pies|feet|')\s*x\s*(\d+[\.,]?\d*)\s*(metros|m|pies|feet|')`)
	// single length like "3 metros", "10 pies"
	lengthRe  = regexp.MustCompile(`(?i)(\d+[\.,]?\d*)\s*(metros|m|pies|feet|')`)
	bareNumRe = regexp.MustCompile(`^\d+[\.,]?\d*$`)
	gaugeRe   = regexp.MustCompile(`\b(18|20|22|24)\b`)
)

var (
	affirmativeWords = []string{"sí", "si", "✅", "ok", "yes", "yep", "vale", "perfecto", "enviar"}
	negativeWords    = []string{"no", "cancel", "nope", "negativo"}
)

// Validator normalizes form answers. The pattern tier always runs; when a
// classifier is configured it gets a second chance at free-form replies
// the patterns reject, and its answer is re-checked against the patterns.
type Validator struct {
	classifier genai.ClientInterface
}

// NewValidator creates a validator. classifier may be nil.
func NewValidator(classifier genai.ClientInterface) *Validator {
	return &Validator{classifier: classifier}
}

// classify runs the optional classifier tier. Returns "" when unavailable
// or when the model answered with a rejection marker.
func (v *Validator) classify(ctx context.Context, prompt string) string {
	if v.classifier == nil {
		return ""
	}
	answer, err := v.classifier.ClassifyText(ctx, prompt)
	if err != nil {
		slog.Debug("Validator classifier unavailable, falling back to patterns", "error", err)
		return ""
	}
	if answer == "" || strings.Contains(answer, "invalido") || strings.Contains(answer, "inválido") {
		return ""
	}
	return answer
}

// FullName accepts two or more words of letters, like "Juan Pérez".
func (v *Validator) FullName(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if len(strings.Fields(trimmed)) < 2 {
		return "", false
	}
	if !fullNameRe.MatchString(trimmed) {
		return "", false
	}
	return trimmed, true
}

// MinLength accepts any answer of at least n characters.
func (v *Validator) MinLength(input string, n int) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if len([]rune(trimmed)) < n {
		return "", false
	}
	return trimmed, true
}

// Quantity accepts tonnage ("2 toneladas", "500 kg") or roll dimensions
// ("20x30"). Free-form replies get a classifier pass whose answer is
// re-checked against the same patterns.
func (v *Validator) Quantity(ctx context.Context, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	if tonnageRe.MatchString(lower) || dimensionsRe.MatchString(lower) {
		return trimmed, true
	}
	normalized := v.classify(ctx, "Extrae la cantidad de esta respuesta y normalízala como tonelaje (ej. \"500 kg\", \"2 toneladas\") o medidas (ej. \"3x30\"). Responde SOLO con el valor normalizado, o \"INVALIDO\".\n\nRespuesta: \""+trimmed+"\"")
	if normalized != "" && (tonnageRe.MatchString(normalized) || dimensionsRe.MatchString(normalized)) {
		return normalized, true
	}
	return "", false
}

// MeasuredDimensions accepts width x height with units, like "2 metros x 3 metros".
func (v *Validator) MeasuredDimensions(ctx context.Context, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if measuredDimsRe.MatchString(trimmed) {
		return trimmed, true
	}
	normalized := v.classify(ctx, "Valida si esta respuesta contiene medidas de ancho por alto con unidades (ej. \"2 metros x 3 metros\"). Si es válida, responde SOLO con la medida normalizada; si no, responde \"INVALIDO\".\n\nRespuesta: \""+trimmed+"\"")
	if normalized != "" && measuredDimsRe.MatchString(normalized) {
		return normalized, true
	}
	return "", false
}

// Length accepts a single measure with units, like "3 metros" or "10 pies".
func (v *Validator) Length(ctx context.Context, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if lengthRe.MatchString(trimmed) {
		return trimmed, true
	}
	normalized := v.classify(ctx, "Valida si esta respuesta es un largo con unidades (ej. \"3 metros\", \"10 pies\"). Si es válido, responde SOLO con la medida; si no, responde \"INVALIDO\".\n\nRespuesta: \""+trimmed+"\"")
	if normalized != "" && lengthRe.MatchString(normalized) {
		return normalized, true
	}
	return "", false
}

// BareNumber accepts a plain unit count like "5".
func (v *Validator) BareNumber(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if bareNumRe.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}

// Service detects whether the customer wants rolling work or supplies.
// Returns "rolado" or "suministros".
func (v *Validator) Service(ctx context.Context, input string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(input))
	if strings.Contains(lower, "rolado") || strings.Contains(lower, "lamina") || strings.Contains(lower, "lámina") {
		return "rolado", true
	}
	if strings.Contains(lower, "suministro") {
		return "suministros", true
	}
	answer := v.classify(ctx, "Analiza esta respuesta y determina si el usuario quiere rolado (venta de láminas) o suministros. Responde SOLO con: rolado, suministros o invalido.\n\nRespuesta: \""+input+"\"")
	switch answer {
	case "rolado", "suministros":
		return answer, true
	}
	return "", false
}

// SheetType detects the sheet material. Returns "zintro_alum" or "pintro".
func (v *Validator) SheetType(ctx context.Context, input string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(input))
	if strings.Contains(lower, "zintro") {
		return "zintro_alum", true
	}
	if strings.Contains(lower, "pintro") {
		return "pintro", true
	}
	answer := v.classify(ctx, "Analiza esta respuesta y detecta qué tipo de lámina quiere el usuario. Responde SOLO con: zintro_alum, pintro o invalido.\n\nRespuesta: \""+input+"\"")
	switch answer {
	case "zintro_alum", "pintro":
		return answer, true
	}
	return "", false
}

// Gauge accepts only calibers 18, 20, 22 and 24, stored as "cal_NN".
func (v *Validator) Gauge(ctx context.Context, input string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(input))
	if m := gaugeRe.FindString(lower); m != "" {
		return "cal_" + m, true
	}
	answer := v.classify(ctx, "Extrae el número de calibre de esta respuesta. Responde SOLO con el número (18, 20, 22 o 24) o \"INVALIDO\".\n\nRespuesta: \""+input+"\"")
	if m := gaugeRe.FindString(answer); m != "" {
		return "cal_" + m, true
	}
	return "", false
}

// MenuChoice accepts the digits 1..n.
func (v *Validator) MenuChoice(input string, n int) (int, bool) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) != 1 || trimmed[0] < '1' || int(trimmed[0]-'0') > n {
		return 0, false
	}
	return int(trimmed[0] - '0'), true
}

// ConfirmIntent classifies a confirmation reply as "confirma", "cancela"
// or "invalido". Keyword matching runs first; the classifier breaks ties.
func (v *Validator) ConfirmIntent(ctx context.Context, input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!'
	})
	for _, tok := range tokens {
		for _, w := range affirmativeWords {
			if tok == w {
				return "confirma"
			}
		}
	}
	for _, tok := range tokens {
		for _, w := range negativeWords {
			if tok == w {
				return "cancela"
			}
		}
	}
	answer := v.classify(ctx, "¿El usuario confirma o cancela?\n\nRespuesta: \""+input+"\"\n\nResponde SOLO con: \"confirma\", \"cancela\" o \"invalido\".")
	switch answer {
	case "confirma", "cancela":
		return answer
	}
	return "invalido"
}
