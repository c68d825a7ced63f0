package genai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/arcosum/arcobot/internal/models"
	"github.com/openai/openai-go"
)

// mockClient returns canned responses for tests.
type mockClient struct {
	message      string
	toolResponse *ToolCallResponse
	lastMessages []openai.ChatCompletionMessageParamUnion
}

func (m *mockClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.lastMessages = messages
	return m.message, nil
}

func (m *mockClient) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	m.lastMessages = messages
	return m.toolResponse, nil
}

func (m *mockClient) ClassifyText(ctx context.Context, prompt string) (string, error) {
	return m.message, nil
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("NewClient with key failed: %v", err)
	}
}

func TestEvaluateLeadParsesToolCall(t *testing.T) {
	args := analyzeLeadArgs{
		IsQualifiedLead:  true,
		LeadScore:        9,
		LeadType:         "cotizacion_seria",
		Division:         "rolados",
		ProjectInfo:      map[string]string{"cantidad": "500 kg", "calibre": "cal_20"},
		SummaryForSeller: "Cliente necesita rolado de 500 kg calibre 20",
		NextAction:       "Llamar para confirmar medidas",
		DatosCompletos:   true,
	}
	raw, _ := json.Marshal(args)
	mock := &mockClient{
		toolResponse: &ToolCallResponse{
			Content: "Perfecto, he enviado tus datos a nuestros vendedores.",
			ToolCalls: []ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: ToolCallFunction{Name: "analyze_lead", Arguments: raw},
			}},
		},
	}

	evaluator := NewLeadEvaluator(mock)
	history := []models.Message{
		{Body: "hola", Direction: models.DirectionInbound},
		{Body: "¿En qué puedo ayudarte?", Direction: models.DirectionOutbound},
	}
	reply, analysis, err := evaluator.EvaluateLead(context.Background(), "5212221234567", "necesito rolado", history, models.DivisionRolados)
	if err != nil {
		t.Fatalf("EvaluateLead failed: %v", err)
	}
	if reply == "" {
		t.Error("expected a customer-facing reply")
	}
	if analysis == nil {
		t.Fatal("expected a lead analysis")
	}
	if analysis.LeadScore != 9 || !analysis.IsQualified {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if analysis.PhoneNumber != "5212221234567" {
		t.Errorf("analysis phone = %q", analysis.PhoneNumber)
	}
	if analysis.ProjectInfo["calibre"] != "cal_20" {
		t.Errorf("project info not preserved: %v", analysis.ProjectInfo)
	}
	// System prompt, division context, two history messages, current message.
	if len(mock.lastMessages) != 5 {
		t.Errorf("sent %d messages, want 5", len(mock.lastMessages))
	}
}

func TestEvaluateLeadWithoutToolCall(t *testing.T) {
	mock := &mockClient{toolResponse: &ToolCallResponse{Content: "Hola, ¿en qué puedo ayudarte?"}}
	evaluator := NewLeadEvaluator(mock)

	reply, analysis, err := evaluator.EvaluateLead(context.Background(), "5212221234567", "hola", nil, models.DivisionUnassigned)
	if err != nil {
		t.Fatalf("EvaluateLead failed: %v", err)
	}
	if analysis != nil {
		t.Errorf("expected no analysis, got %+v", analysis)
	}
	if reply != "Hola, ¿en qué puedo ayudarte?" {
		t.Errorf("reply = %q", reply)
	}
}

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		name     string
		analysis *models.LeadAnalysis
		minScore int
		want     bool
	}{
		{"nil analysis", nil, 7, false},
		{"qualified", &models.LeadAnalysis{IsQualified: true, LeadScore: 3}, 7, true},
		{"high score", &models.LeadAnalysis{LeadScore: 8}, 7, true},
		{"serious quotation", &models.LeadAnalysis{LeadScore: 4, LeadType: models.LeadTypeCotizacionSeria}, 7, true},
		{"weak consulta", &models.LeadAnalysis{LeadScore: 3, LeadType: models.LeadTypeConsultaGeneral}, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.analysis, tt.minScore); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}
