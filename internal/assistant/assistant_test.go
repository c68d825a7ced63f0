package assistant

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/openai/openai-go"

	"github.com/arcosum/arcobot/internal/genai"
	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
	"github.com/arcosum/arcobot/internal/store"
)

type stubClient struct {
	reply    string
	toolArgs string
}

func (c *stubClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.reply, nil
}

func (c *stubClient) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	resp := &genai.ToolCallResponse{Content: c.reply}
	if c.toolArgs != "" {
		resp.ToolCalls = []genai.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: genai.ToolCallFunction{
				Name:      "analyze_lead",
				Arguments: json.RawMessage(c.toolArgs),
			},
		}}
	}
	return resp, nil
}

func (c *stubClient) ClassifyText(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

type capturedSchedule struct {
	leads []*models.LeadAnalysis
}

func (s *capturedSchedule) Schedule(analysis *models.LeadAnalysis) {
	s.leads = append(s.leads, analysis)
}

func TestReplyAnswersAndSchedulesQualifiedLead(t *testing.T) {
	recorder := messaging.NewRecorderService()
	st := store.NewInMemoryStore()
	phone := "+5212221112233"
	if err := st.CreateUser(phone); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	scheduler := &capturedSchedule{}
	client := &stubClient{
		reply:    "Con gusto te preparo la cotización.",
		toolArgs: `{"is_qualified_lead":true,"lead_score":9,"lead_type":"cotizacion_seria","division":"rolados","summary_for_seller":"Cliente pide 2 toneladas","datos_completos":true}`,
	}
	a := New(client, recorder, st, WithScheduler(scheduler))

	if err := a.Reply(context.Background(), phone, "Necesito 2 toneladas de lámina"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	last := recorder.LastMessage()
	if last == nil || last.Body != "Con gusto te preparo la cotización." {
		t.Fatalf("unexpected customer reply: %+v", last)
	}
	if len(scheduler.leads) != 1 {
		t.Fatalf("expected 1 scheduled lead, got %d", len(scheduler.leads))
	}
	if scheduler.leads[0].LeadScore != 9 {
		t.Errorf("scheduled score = %d", scheduler.leads[0].LeadScore)
	}
	stored, err := st.GetLeadHistory(phone, 10)
	if err != nil {
		t.Fatalf("GetLeadHistory failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected persisted analysis, got %d", len(stored))
	}
}

func TestReplyBelowThresholdDoesNotSchedule(t *testing.T) {
	recorder := messaging.NewRecorderService()
	st := store.NewInMemoryStore()
	phone := "+5212221112233"
	if err := st.CreateUser(phone); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	scheduler := &capturedSchedule{}
	client := &stubClient{
		reply:    "Gracias por escribirnos.",
		toolArgs: `{"is_qualified_lead":false,"lead_score":2,"lead_type":"consulta_general","summary_for_seller":"Saludo","datos_completos":false}`,
	}
	a := New(client, recorder, st, WithScheduler(scheduler))

	if err := a.Reply(context.Background(), phone, "hola"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if len(scheduler.leads) != 0 {
		t.Fatalf("unqualified lead was scheduled")
	}
}

func TestReplyWithoutToolCallStillAnswers(t *testing.T) {
	recorder := messaging.NewRecorderService()
	st := store.NewInMemoryStore()
	phone := "+5212221112233"
	if err := st.CreateUser(phone); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	client := &stubClient{reply: "¿En qué puedo ayudarte?"}
	a := New(client, recorder, st)

	if err := a.Reply(context.Background(), phone, "hola"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if last := recorder.LastMessage(); last == nil || last.Body != "¿En qué puedo ayudarte?" {
		t.Fatalf("unexpected reply: %+v", last)
	}
}
