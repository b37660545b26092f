package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agendafacil/booking-platform/internal/appointments"
	"github.com/agendafacil/booking-platform/internal/catalog"
	"github.com/agendafacil/booking-platform/internal/schedule"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

const sendTimeout = 15 * time.Second

// Service emails booking events to the business owner and, when an address
// is known, a confirmation with the cancel link to the client. It satisfies
// the booking service's Notifier contract: dispatch is asynchronous and
// failures never reach the booking path.
type Service struct {
	email     EmailSender
	catalog   catalog.Repository
	publicURL string
	logger    *logging.Logger

	// dispatch is swapped out in tests to run sends inline.
	dispatch func(fn func(ctx context.Context))
}

// NewService wires the notification service. publicURL is the external base
// URL cancel links are built on, without a trailing slash.
func NewService(email EmailSender, cat catalog.Repository, publicURL string, logger *logging.Logger) *Service {
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if cat == nil {
		panic("notify: catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		email:     email,
		catalog:   cat,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
	s.dispatch = func(fn func(ctx context.Context)) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			fn(ctx)
		}()
	}
	return s
}

var _ appointments.Notifier = (*Service)(nil)

// Synchronous forces inline dispatch; tests use it to assert on sent mail.
func (s *Service) Synchronous() *Service {
	s.dispatch = func(fn func(ctx context.Context)) { fn(context.Background()) }
	return s
}

// BookingCreated emails the owner, and the client when an address is known.
func (s *Service) BookingCreated(_ context.Context, appt *appointments.Appointment) {
	snapshot := *appt
	s.dispatch(func(ctx context.Context) {
		biz, svc, ok := s.lookup(ctx, &snapshot)
		if !ok {
			return
		}
		local := snapshot.ScheduledAt.In(schedule.BusinessLocation)
		when := local.Format("02/01/2006 às 15:04")

		if biz.OwnerEmail != "" {
			s.deliver(ctx, EmailMessage{
				To:      biz.OwnerEmail,
				ToName:  biz.Name,
				Subject: fmt.Sprintf("Novo agendamento: %s em %s", svc.Name, when),
				Body: fmt.Sprintf("Novo agendamento em %s.\n\nServiço: %s\nCliente: %s\nTelefone: %s\nHorário: %s\nStatus: %s\n",
					biz.Name, svc.Name, snapshot.ClientName, snapshot.ClientPhone, when, snapshot.Status),
			})
		}

		if snapshot.ClientEmail != "" {
			body := fmt.Sprintf("Olá %s,\n\nSeu agendamento de %s em %s foi registrado para %s.\n",
				snapshot.ClientName, svc.Name, biz.Name, when)
			if snapshot.CancelToken != "" && s.publicURL != "" {
				body += fmt.Sprintf("\nPara cancelar, acesse:\n%s/public/cancel?token=%s\nO link funciona uma única vez.\n",
					s.publicURL, snapshot.CancelToken)
			}
			s.deliver(ctx, EmailMessage{
				To:      snapshot.ClientEmail,
				ToName:  snapshot.ClientName,
				Subject: fmt.Sprintf("Agendamento confirmado - %s", biz.Name),
				Body:    body,
			})
		}
	})
}

// BookingCancelled emails the owner about the freed slot.
func (s *Service) BookingCancelled(_ context.Context, appt *appointments.Appointment) {
	snapshot := *appt
	s.dispatch(func(ctx context.Context) {
		biz, svc, ok := s.lookup(ctx, &snapshot)
		if !ok || biz.OwnerEmail == "" {
			return
		}
		local := snapshot.ScheduledAt.In(schedule.BusinessLocation)
		when := local.Format("02/01/2006 às 15:04")
		s.deliver(ctx, EmailMessage{
			To:      biz.OwnerEmail,
			ToName:  biz.Name,
			Subject: fmt.Sprintf("Agendamento cancelado: %s em %s", svc.Name, when),
			Body: fmt.Sprintf("O cliente %s cancelou o agendamento de %s em %s.\nO horário voltou a ficar disponível.\n",
				snapshot.ClientName, svc.Name, when),
		})
	})
}

func (s *Service) lookup(ctx context.Context, appt *appointments.Appointment) (*catalog.Business, *catalog.Service, bool) {
	biz, err := s.catalog.GetBusiness(ctx, appt.BusinessID)
	if err != nil {
		s.logger.Error("notify: business lookup failed", "business_id", appt.BusinessID, "error", err)
		return nil, nil, false
	}
	svc, err := s.catalog.GetService(ctx, appt.BusinessID, appt.ServiceID)
	if err != nil {
		s.logger.Error("notify: service lookup failed", "service_id", appt.ServiceID, "error", err)
		return nil, nil, false
	}
	return biz, svc, true
}

func (s *Service) deliver(ctx context.Context, msg EmailMessage) {
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: email delivery failed", "to", msg.To, "error", err)
	}
}
