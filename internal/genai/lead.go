package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arcosum/arcobot/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// HistoryWindowActive is how many recent messages feed the evaluator for
// active users; HistoryWindowInactive applies after an inactivity sweep.
const (
	HistoryWindowActive   = 10
	HistoryWindowInactive = 3
)

// assistantSystemPrompt grounds the model in the ARCOSUM business context.
const assistantSystemPrompt = `Eres un asistente virtual de ARCOSUM, grupo empresarial mexicano de construcción con sede en Tlaxcala, México.

⚠️ IMPORTANTE: SOLO ATENDEMOS CLIENTES EN MÉXICO

🏗️ ARCOSUM TECHOS (Arcotechos y Estructuras):
- Arcotechos industriales (techos curvos autosoportados)
- Estructuras metálicas para construcción
- Teléfono vendedor: +52 1 222 423 4611

🔧 ARCOSUM ROLADOS (Laminados y Suministros):
- Laminados y perfiles de acero
- Rolados (deformar el metal) y suministros industriales
- Teléfono vendedor: +52 222 114 8841
- Calibres disponibles: SOLO del 18 al 24
- Láminas: SOLO Pintro y Zintro Alum

📅 Horario: Lunes a Viernes 8:00-18:00, Sábados 8:00-13:00

TU TRABAJO:
1. SER DIRECTO: recopila los datos necesarios sin rodeos.
2. NO mencionar herramientas ni procesos internos.
3. NUNCA mencionar las palabras "lead" o "calificación" al cliente.
4. NO ofrecer productos o servicios que no manejamos.
5. NO responder preguntas generales fuera de ARCOSUM.
6. Si el cliente responde "ok", "nada" o "eso es todo", responde:
   "Perfecto, quedo al pendiente. Si necesitas algo más, con gusto te ayudo."
7. Si el cliente no coopera tras insistir, comparte el número del vendedor
   correspondiente a su división.

Usa la herramienta analyze_lead en cada respuesta para registrar la
evaluación del cliente.`

// analyzeLeadTool is the function tool the model uses to report its evaluation.
func analyzeLeadTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        "analyze_lead",
			Description: openai.String("Analiza si el cliente es un lead calificado y genera resumen para el vendedor"),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"is_qualified_lead": map[string]interface{}{
						"type":        "boolean",
						"description": "True si el cliente está listo para cotización seria y tiene suficiente información",
					},
					"lead_score": map[string]interface{}{
						"type":        "integer",
						"description": "Puntuación del lead de 1-10 (10 = muy calificado con todos los datos)",
					},
					"lead_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"cotizacion_seria", "consulta_general", "spam", "seguimiento"},
						"description": "Tipo de lead",
					},
					"division": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"techos", "rolados", "suministros", "otros"},
						"description": "División de ARCOSUM que atiende al cliente",
					},
					"project_info": map[string]interface{}{
						"type":        "object",
						"description": "Datos recopilados para la cotización, como pares campo:valor",
						"additionalProperties": map[string]interface{}{
							"type": "string",
						},
					},
					"summary_for_seller": map[string]interface{}{
						"type":        "string",
						"description": "Resumen conciso para el vendedor sobre qué necesita el cliente",
					},
					"next_action": map[string]interface{}{
						"type":        "string",
						"description": "Acción recomendada para el vendedor",
					},
					"datos_completos": map[string]interface{}{
						"type":        "boolean",
						"description": "True si ya se tiene toda la información necesaria para cotizar",
					},
				},
				"required": []string{"is_qualified_lead", "lead_score", "lead_type", "summary_for_seller", "datos_completos"},
			},
		},
	}
}

// analyzeLeadArgs mirrors the analyze_lead tool schema.
type analyzeLeadArgs struct {
	IsQualifiedLead  bool              `json:"is_qualified_lead"`
	LeadScore        int               `json:"lead_score"`
	LeadType         string            `json:"lead_type"`
	Division         string            `json:"division"`
	ProjectInfo      map[string]string `json:"project_info"`
	SummaryForSeller string            `json:"summary_for_seller"`
	NextAction       string            `json:"next_action"`
	DatosCompletos   bool              `json:"datos_completos"`
}

// LeadEvaluator runs conversational lead evaluation over a GenAI client.
type LeadEvaluator struct {
	client ClientInterface
}

// NewLeadEvaluator creates a lead evaluator backed by the given client.
func NewLeadEvaluator(client ClientInterface) *LeadEvaluator {
	return &LeadEvaluator{client: client}
}

// EvaluateLead sends the conversation to the model and returns the reply
// text for the customer plus the structured lead analysis, when the model
// produced one. The history should already be windowed by the caller.
func (e *LeadEvaluator) EvaluateLead(ctx context.Context, phone, message string, history []models.Message, division models.Division) (string, *models.LeadAnalysis, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(assistantSystemPrompt),
	}
	if division != models.DivisionUnassigned {
		messages = append(messages, openai.SystemMessage(fmt.Sprintf("El cliente está asignado a la división %s.", division.DisplayName())))
	}
	for _, m := range history {
		if m.Direction == models.DirectionOutbound {
			messages = append(messages, openai.AssistantMessage(m.Body))
		} else {
			messages = append(messages, openai.UserMessage(m.Body))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	resp, err := e.client.GenerateWithTools(ctx, messages, []openai.ChatCompletionToolParam{analyzeLeadTool()})
	if err != nil {
		return "", nil, fmt.Errorf("lead evaluation failed for %s: %w", phone, err)
	}

	var analysis *models.LeadAnalysis
	for _, toolCall := range resp.ToolCalls {
		if toolCall.Function.Name != "analyze_lead" {
			continue
		}
		var args analyzeLeadArgs
		if err := json.Unmarshal(toolCall.Function.Arguments, &args); err != nil {
			slog.Error("LeadEvaluator failed to decode analyze_lead arguments", "error", err, "phone", phone)
			continue
		}
		analysis = &models.LeadAnalysis{
			PhoneNumber:  phone,
			IsQualified:  args.IsQualifiedLead,
			LeadScore:    args.LeadScore,
			LeadType:     models.LeadType(args.LeadType),
			Division:     models.Division(args.Division),
			Summary:      args.SummaryForSeller,
			NextAction:   args.NextAction,
			ProjectInfo:  args.ProjectInfo,
			DataComplete: args.DatosCompletos,
		}
		if analysis.Division == models.DivisionUnassigned {
			analysis.Division = division
		}
		break
	}

	if analysis != nil {
		slog.Debug("LeadEvaluator EvaluateLead succeeded", "phone", phone, "score", analysis.LeadScore, "qualified", analysis.IsQualified)
	} else {
		slog.Debug("LeadEvaluator EvaluateLead returned no analysis", "phone", phone)
	}
	return resp.Content, analysis, nil
}

// ShouldNotify reports whether an analysis is strong enough to alert a seller.
func ShouldNotify(analysis *models.LeadAnalysis, minScore int) bool {
	if analysis == nil {
		return false
	}
	return analysis.IsQualified ||
		analysis.LeadScore >= minScore ||
		analysis.LeadType == models.LeadTypeCotizacionSeria
}
