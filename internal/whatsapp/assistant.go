package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/agendafacil/booking-platform/internal/catalog"
	"github.com/agendafacil/booking-platform/internal/schedule"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

// AssistantRequest is one inbound client message with its resolved business.
type AssistantRequest struct {
	BusinessID string
	Phone      string
	Body       string
}

// AssistantReply is the assistant's answer. A non-nil Proposal means the
// reply offers that concrete slot and the flow should park it as pending.
type AssistantReply struct {
	Text     string
	Proposal *PendingSlot
}

// Assistant turns a free-form client message into a reply, optionally
// proposing one bookable slot.
type Assistant interface {
	Reply(ctx context.Context, req AssistantRequest) (AssistantReply, error)
}

// proposalMarker is the machine-readable trailer the LLM emits when its
// reply offers a concrete slot: PROPOR|<service_id>|<RFC3339 start>.
const proposalMarker = "PROPOR|"

// GeminiAssistant drives the conversation with Google's Gemini API, grounded
// on the business's live catalog and availability.
type GeminiAssistant struct {
	client       *genai.Client
	modelID      string
	catalog      catalog.Repository
	availability *schedule.Availability
	now          func() time.Time
	logger       *logging.Logger
}

// NewGeminiAssistant creates the Gemini-backed assistant.
func NewGeminiAssistant(ctx context.Context, apiKey, modelID string, cat catalog.Repository, availability *schedule.Availability, logger *logging.Logger) (*GeminiAssistant, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("whatsapp: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	if cat == nil {
		panic("whatsapp: catalog required")
	}
	if availability == nil {
		panic("whatsapp: availability required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create gemini client: %w", err)
	}
	return &GeminiAssistant{
		client:       client,
		modelID:      modelID,
		catalog:      cat,
		availability: availability,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}, nil
}

// WithClock overrides the time source for tests.
func (a *GeminiAssistant) WithClock(now func() time.Time) *GeminiAssistant {
	a.now = now
	return a
}

// Reply asks Gemini for the next message, seeding it with the services and
// the free slots of the coming days.
func (a *GeminiAssistant) Reply(ctx context.Context, req AssistantRequest) (AssistantReply, error) {
	biz, err := a.catalog.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return AssistantReply{}, err
	}
	services, err := a.catalog.ListServices(ctx, req.BusinessID)
	if err != nil {
		return AssistantReply{}, err
	}
	if len(services) == 0 {
		return AssistantReply{Text: fmt.Sprintf("%s ainda não tem serviços disponíveis para agendamento online.", biz.Name)}, nil
	}

	system := a.buildSystemPrompt(ctx, biz, services)

	model := a.client.GenerativeModel(a.modelID)
	model.SetTemperature(0.4)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))

	cs := model.StartChat()
	resp, err := cs.SendMessage(ctx, genai.Text(req.Body))
	if err != nil {
		return AssistantReply{}, fmt.Errorf("whatsapp: gemini completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return AssistantReply{}, errors.New("whatsapp: gemini returned no content")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	reply, proposal := a.extractProposal(ctx, req.BusinessID, text.String())
	return AssistantReply{Text: reply, Proposal: proposal}, nil
}

// buildSystemPrompt renders the business card the model answers from:
// service menu plus the first free slots of the next week, all in the
// business's local time.
func (a *GeminiAssistant) buildSystemPrompt(ctx context.Context, biz *catalog.Business, services []catalog.Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Você é o assistente de agendamento do estabelecimento %s no WhatsApp.\n", biz.Name)
	b.WriteString("Responda em português brasileiro, com mensagens curtas.\n")
	b.WriteString("Serviços disponíveis:\n")
	for _, svc := range services {
		fmt.Fprintf(&b, "- %s (%d minutos, id=%s)\n", svc.Name, svc.DurationMinutes, svc.ID)
	}

	b.WriteString("Horários livres (horário local de Brasília):\n")
	today := schedule.LocalDateOf(a.now().In(schedule.BusinessLocation))
	for _, svc := range services {
		listed := 0
		for offset := 0; offset < 7 && listed < 4; offset++ {
			date := today.AddDays(offset)
			free, err := a.availability.ListBookableSlots(ctx, biz.ID, svc.ID, date, 0)
			if err != nil {
				a.logger.Warn("availability lookup failed for prompt", "service_id", svc.ID, "error", err)
				break
			}
			for _, start := range free {
				if listed >= 4 {
					break
				}
				fmt.Fprintf(&b, "- %s: %s (start_utc=%s)\n",
					svc.Name,
					start.In(schedule.BusinessLocation).Format("Mon 02/01 15:04"),
					start.Format(time.RFC3339))
				listed++
			}
		}
	}

	b.WriteString("\nQuando oferecer um horário concreto, ofereça UM por vez e termine a mensagem com uma linha exatamente no formato:\n")
	b.WriteString("PROPOR|<id do serviço>|<start_utc em RFC3339>\n")
	b.WriteString("Use apenas horários da lista acima. Nunca invente horários.\n")
	b.WriteString("Se o cliente confirmar com \"sim\", o sistema efetiva a reserva; você não precisa tratar a confirmação.\n")
	return b.String()
}

// extractProposal splits the machine trailer off the human text and
// validates it against the catalog. A malformed trailer is dropped silently:
// better an unparked proposal than a broken reply.
func (a *GeminiAssistant) extractProposal(ctx context.Context, businessID, raw string) (string, *PendingSlot) {
	var textLines []string
	var proposal *PendingSlot
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, proposalMarker) {
			textLines = append(textLines, line)
			continue
		}
		parts := strings.Split(trimmed, "|")
		if len(parts) != 3 {
			continue
		}
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[2]))
		if err != nil {
			a.logger.Warn("assistant proposal has bad timestamp", "raw", trimmed)
			continue
		}
		svc, err := a.catalog.GetService(ctx, businessID, strings.TrimSpace(parts[1]))
		if err != nil {
			a.logger.Warn("assistant proposal names unknown service", "raw", trimmed)
			continue
		}
		proposal = &PendingSlot{
			BusinessID:      businessID,
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			StartUTC:        start.UTC(),
			DurationMinutes: svc.DurationMinutes,
		}
	}
	return strings.TrimSpace(strings.Join(textLines, "\n")), proposal
}

// RuleBasedAssistant proposes the earliest free slot of the first service.
// It backs deployments without a Gemini key and keeps the webhook flow
// deterministic in tests.
type RuleBasedAssistant struct {
	catalog      catalog.Repository
	availability *schedule.Availability
	now          func() time.Time
}

// NewRuleBasedAssistant creates the deterministic assistant.
func NewRuleBasedAssistant(cat catalog.Repository, availability *schedule.Availability) *RuleBasedAssistant {
	if cat == nil {
		panic("whatsapp: catalog required")
	}
	if availability == nil {
		panic("whatsapp: availability required")
	}
	return &RuleBasedAssistant{
		catalog:      cat,
		availability: availability,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source for tests.
func (a *RuleBasedAssistant) WithClock(now func() time.Time) *RuleBasedAssistant {
	a.now = now
	return a
}

// Reply offers the earliest free slot within the next week, or apologizes.
func (a *RuleBasedAssistant) Reply(ctx context.Context, req AssistantRequest) (AssistantReply, error) {
	biz, err := a.catalog.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return AssistantReply{}, err
	}
	services, err := a.catalog.ListServices(ctx, req.BusinessID)
	if err != nil {
		return AssistantReply{}, err
	}
	if len(services) == 0 {
		return AssistantReply{Text: fmt.Sprintf("%s ainda não tem serviços disponíveis para agendamento.", biz.Name)}, nil
	}
	svc := services[0]

	today := schedule.LocalDateOf(a.now().In(schedule.BusinessLocation))
	for offset := 0; offset < 7; offset++ {
		free, err := a.availability.ListBookableSlots(ctx, biz.ID, svc.ID, today.AddDays(offset), 0)
		if err != nil {
			return AssistantReply{}, err
		}
		if len(free) == 0 {
			continue
		}
		start := free[0]
		local := start.In(schedule.BusinessLocation)
		return AssistantReply{
			Text: fmt.Sprintf("Tenho %s disponível em %s às %s. Posso reservar? Responda \"sim\" para confirmar.",
				svc.Name, local.Format("02/01"), local.Format("15:04")),
			Proposal: &PendingSlot{
				BusinessID:      biz.ID,
				ServiceID:       svc.ID,
				ServiceName:     svc.Name,
				StartUTC:        start,
				DurationMinutes: svc.DurationMinutes,
			},
		}, nil
	}
	return AssistantReply{Text: fmt.Sprintf("No momento %s está sem horários livres nos próximos dias.", biz.Name)}, nil
}
