package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agendafacil/booking-platform/internal/appointments"
	"github.com/agendafacil/booking-platform/internal/catalog"
	"github.com/agendafacil/booking-platform/internal/observability/metrics"
	"github.com/agendafacil/booking-platform/internal/schedule"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

// Booker is the slice of the booking service the flow needs.
type Booker interface {
	Create(ctx context.Context, req appointments.CreateRequest) (*appointments.Appointment, error)
}

// affirmatives are the short Brazilian Portuguese replies treated as "book
// the pending slot". Matching is exact on the normalized message, so "sim,
// mas pode ser mais tarde?" goes to the assistant instead of booking.
var affirmatives = map[string]struct{}{
	"sim":       {},
	"s":         {},
	"yes":       {},
	"ok":        {},
	"okay":      {},
	"claro":     {},
	"confirmo":  {},
	"confirma":  {},
	"confirmar": {},
	"pode":      {},
	"pode ser":  {},
	"pode sim":  {},
	"isso":      {},
	"quero":     {},
	"aceito":    {},
	"fechado":   {},
	"beleza":    {},
	"blz":       {},
	"👍":         {},
}

// IsAffirmative reports whether the message is a bare confirmation.
func IsAffirmative(body string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	normalized = strings.Trim(normalized, "!.…")
	normalized = strings.Join(strings.Fields(normalized), " ")
	_, ok := affirmatives[normalized]
	return ok
}

// ConfirmationFlow is the inbound WhatsApp state machine: an affirmative
// message consumes the phone's pending slot and books it; everything else
// goes to the assistant, whose proposal (if any) becomes the new pending
// slot.
type ConfirmationFlow struct {
	pending   PendingSlotStore
	bookings  Booker
	assistant Assistant
	sender    TextSender
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewConfirmationFlow wires the flow.
func NewConfirmationFlow(pending PendingSlotStore, bookings Booker, assistant Assistant, sender TextSender, m *metrics.BookingMetrics, logger *logging.Logger) *ConfirmationFlow {
	if pending == nil {
		panic("whatsapp: pending slot store required")
	}
	if bookings == nil {
		panic("whatsapp: booking service required")
	}
	if assistant == nil {
		panic("whatsapp: assistant required")
	}
	if sender == nil {
		sender = NopSender{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationFlow{
		pending:   pending,
		bookings:  bookings,
		assistant: assistant,
		sender:    sender,
		metrics:   m,
		logger:    logger,
	}
}

// HandleInbound processes one message and sends the reply. The returned text
// mirrors what was sent.
func (f *ConfirmationFlow) HandleInbound(ctx context.Context, businessID, fromPhone, body string) (string, error) {
	phone := NormalizePhone(fromPhone)
	if phone == "" {
		return "", fmt.Errorf("whatsapp: inbound message without usable phone")
	}

	if IsAffirmative(body) {
		slot, err := f.pending.TryGetAndRemove(ctx, phone)
		if err != nil {
			return "", err
		}
		if slot != nil {
			return f.confirmPending(ctx, phone, slot)
		}
		// "Sim" with nothing pending: either the proposal expired or a
		// concurrent confirmation already consumed it. The assistant
		// re-offers from live availability.
		f.logger.Info("affirmative with no pending slot", "phone", phone)
	}

	return f.assist(ctx, businessID, phone, body, "")
}

func (f *ConfirmationFlow) confirmPending(ctx context.Context, phone string, slot *PendingSlot) (string, error) {
	clientName := slot.ClientName
	if clientName == "" {
		clientName = "Cliente WhatsApp " + phone
	}
	appt, err := f.bookings.Create(ctx, appointments.CreateRequest{
		BusinessID:  slot.BusinessID,
		ServiceID:   slot.ServiceID,
		ClientName:  clientName,
		ClientPhone: phone,
		ScheduledAt: slot.StartUTC,
		Origin:      appointments.OriginWhatsApp,
	})
	switch {
	case err == nil:
		f.metrics.ObserveWhatsAppInbound("confirmed")
		local := appt.ScheduledAt.In(schedule.BusinessLocation)
		reply := fmt.Sprintf("Confirmado! %s agendado para %s às %s. Até lá!",
			slot.ServiceName, local.Format("02/01"), local.Format("15:04"))
		f.send(ctx, phone, reply)
		return reply, nil
	case errors.Is(err, appointments.ErrSlotConflict), errors.Is(err, appointments.ErrPastTime):
		// The slot was taken (or expired into the past) between proposal and
		// confirmation. Re-enter the assistant for a fresh offer.
		f.metrics.ObserveWhatsAppInbound("conflict")
		f.logger.Info("pending slot no longer bookable", "phone", phone, "error", err)
		return f.assist(ctx, slot.BusinessID, phone,
			"o horário que você ofereceu não está mais disponível, quais são as opções?",
			"Esse horário acabou de ser preenchido. ")
	case errors.Is(err, appointments.ErrServiceInactive), errors.Is(err, catalog.ErrServiceNotFound):
		// The service was deactivated or removed while the proposal sat
		// pending. Nothing was created; same recovery as a taken slot.
		f.metrics.ObserveWhatsAppInbound("conflict")
		f.logger.Info("pending slot references unavailable service",
			"phone", phone, "service_id", slot.ServiceID, "error", err)
		return f.assist(ctx, slot.BusinessID, phone,
			"o serviço que você ofereceu não está mais disponível, quais são as opções?",
			"Esse serviço não está mais disponível. ")
	default:
		f.metrics.ObserveWhatsAppInbound("error")
		return "", err
	}
}

func (f *ConfirmationFlow) assist(ctx context.Context, businessID, phone, body, prefix string) (string, error) {
	reply, err := f.assistant.Reply(ctx, AssistantRequest{BusinessID: businessID, Phone: phone, Body: body})
	if err != nil {
		f.metrics.ObserveWhatsAppInbound("error")
		return "", err
	}
	if reply.Proposal != nil {
		if err := f.pending.Set(ctx, phone, *reply.Proposal); err != nil {
			// The client would confirm into a void; better to fail loudly.
			f.metrics.ObserveWhatsAppInbound("error")
			return "", err
		}
		f.metrics.ObserveWhatsAppInbound("proposed")
	} else {
		f.metrics.ObserveWhatsAppInbound("answered")
	}
	text := prefix + reply.Text
	f.send(ctx, phone, text)
	return text, nil
}

func (f *ConfirmationFlow) send(ctx context.Context, phone, text string) {
	if err := f.sender.SendText(ctx, phone, text); err != nil {
		f.logger.Error("whatsapp reply send failed", "phone", phone, "error", err)
	}
}
