package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agendafacil/booking-platform/pkg/logging"
)

var twilioSendTracer = otel.Tracer("agendafacil.internal.whatsapp.twilio_send")

// TextSender delivers one outbound WhatsApp message.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// NopSender discards outbound messages; webhook tests use it.
type NopSender struct{}

func (NopSender) SendText(context.Context, string, string) error { return nil }

// TwilioWhatsAppSender posts messages through Twilio's REST API on the
// WhatsApp channel.
type TwilioWhatsAppSender struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioWhatsAppSender builds a sender. from is the business's WhatsApp
// number in E.164 without the channel prefix.
func NewTwilioWhatsAppSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioWhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioWhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

var _ TextSender = (*TwilioWhatsAppSender)(nil)

// SendText dispatches a single message, retrying transient failures.
func (s *TwilioWhatsAppSender) SendText(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("whatsapp: twilio credentials missing")
	}
	to = NormalizeE164(to)
	if to == "" {
		return errors.New("whatsapp: to required")
	}
	from := NormalizeE164(s.from)
	if from == "" {
		return errors.New("whatsapp: from required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("whatsapp: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "whatsapp.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("agendafacil.to", to))

	payload := url.Values{}
	payload.Set("To", "whatsapp:"+to)
	payload.Set("From", "whatsapp:"+from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("whatsapp message sent", "to", to)
				return nil
			}
			lastErr = fmt.Errorf("whatsapp: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return lastErr
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
