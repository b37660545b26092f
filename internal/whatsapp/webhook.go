package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/agendafacil/booking-platform/internal/tenancy"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

// ErrBusinessNotMapped means the destination WhatsApp number belongs to no
// known business.
var ErrBusinessNotMapped = errors.New("whatsapp: no business for number")

// BusinessResolver maps the Twilio "To" number to the business it serves.
type BusinessResolver interface {
	BusinessForNumber(toNumber string) (string, error)
}

// StaticBusinessResolver is a map-backed resolver, loaded from configuration.
type StaticBusinessResolver struct {
	mapping map[string]string
}

// NewStaticBusinessResolver normalizes the configured number keys.
func NewStaticBusinessResolver(mapping map[string]string) *StaticBusinessResolver {
	normalized := make(map[string]string, len(mapping))
	for raw, businessID := range mapping {
		clean := NormalizePhone(raw)
		if clean == "" || businessID == "" {
			continue
		}
		normalized[clean] = businessID
	}
	return &StaticBusinessResolver{mapping: normalized}
}

// BusinessForNumber implements BusinessResolver.
func (r *StaticBusinessResolver) BusinessForNumber(toNumber string) (string, error) {
	if r == nil {
		return "", ErrBusinessNotMapped
	}
	businessID, ok := r.mapping[NormalizePhone(toNumber)]
	if !ok {
		return "", ErrBusinessNotMapped
	}
	return businessID, nil
}

// WebhookHandler terminates Twilio's inbound WhatsApp webhook. The reply is
// sent out of band through the flow's sender; Twilio only gets an empty
// TwiML acknowledgment.
type WebhookHandler struct {
	flow       *ConfirmationFlow
	resolver   BusinessResolver
	authToken  string
	webhookURL string
	logger     *logging.Logger
}

// NewWebhookHandler wires the webhook. An empty authToken disables signature
// validation, for local runs and tests.
func NewWebhookHandler(flow *ConfirmationFlow, resolver BusinessResolver, authToken, webhookURL string, logger *logging.Logger) *WebhookHandler {
	if flow == nil {
		panic("whatsapp: confirmation flow required")
	}
	if resolver == nil {
		panic("whatsapp: business resolver required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		flow:       flow,
		resolver:   resolver,
		authToken:  authToken,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// ServeHTTP handles POST /webhooks/whatsapp.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return
	}
	if h.authToken != "" && !validTwilioSignature(r, h.authToken, h.webhookURL) {
		h.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	body := r.PostFormValue("Body")
	if from == "" || strings.TrimSpace(body) == "" {
		http.Error(w, "From and Body are required", http.StatusBadRequest)
		return
	}

	businessID, err := h.resolver.BusinessForNumber(to)
	if err != nil {
		h.logger.Warn("inbound for unmapped number", "to", to)
		http.Error(w, "unknown destination", http.StatusNotFound)
		return
	}

	ctx := tenancy.WithBusinessID(r.Context(), businessID)
	if _, err := h.flow.HandleInbound(ctx, businessID, from, body); err != nil {
		h.logger.Error("inbound whatsapp handling failed",
			"business_id", businessID,
			"from", NormalizePhone(from),
			"error", err,
		)
		// Twilio retries on 5xx; the flow is safe to replay because the
		// pending-slot read is destructive and rebooking the same interval
		// conflicts instead of duplicating.
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

// validTwilioSignature checks the X-Twilio-Signature HMAC over the webhook
// URL plus the sorted form parameters.
func validTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	expected := computeTwilioSignature(webhookURL, r.PostForm, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func computeTwilioSignature(webhookURL string, params url.Values, authToken string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
