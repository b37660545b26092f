package whatsapp

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/agendafacil/booking-platform/pkg/logging"
)

func webhookFixture(t *testing.T, authToken string) (*WebhookHandler, *MemoryPendingSlotStore, *fakeBooker) {
	t.Helper()
	pending := NewMemoryPendingSlotStore(time.Hour)
	booker := &fakeBooker{}
	assistant := &scriptedAssistant{reply: AssistantReply{Text: "Como posso ajudar?"}}
	flow := NewConfirmationFlow(pending, booker, assistant, NopSender{}, nil, logging.Default())
	resolver := NewStaticBusinessResolver(map[string]string{
		"+5511988880000": "biz-1",
	})
	return NewWebhookHandler(flow, resolver, authToken, "https://api.agendafacil.com.br/webhooks/whatsapp", logging.Default()), pending, booker
}

func twilioForm(from, to, body string) url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)
	return form
}

func postForm(handler http.Handler, form url.Values, sign func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign != nil {
		sign(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookConfirmsPendingSlot(t *testing.T) {
	handler, pending, booker := webhookFixture(t, "")
	if err := pending.Set(t.Context(), "5511999990000", samplePending()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	rec := postForm(handler, twilioForm("whatsapp:+5511999990000", "whatsapp:+5511988880000", "sim"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if len(booker.booked) != 1 {
		t.Fatalf("booked = %d, want 1", len(booker.booked))
	}
}

func TestWebhookRejectsUnmappedNumber(t *testing.T) {
	handler, _, _ := webhookFixture(t, "")

	rec := postForm(handler, twilioForm("whatsapp:+5511999990000", "whatsapp:+5511900000000", "oi"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWebhookRequiresFromAndBody(t *testing.T) {
	handler, _, _ := webhookFixture(t, "")

	rec := postForm(handler, twilioForm("", "whatsapp:+5511988880000", "oi"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing From: status = %d", rec.Code)
	}
	rec = postForm(handler, twilioForm("whatsapp:+5511999990000", "whatsapp:+5511988880000", "  "), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank Body: status = %d", rec.Code)
	}
}

func TestWebhookSignatureValidation(t *testing.T) {
	const token = "twilio-auth-token"
	const webhookURL = "https://api.agendafacil.com.br/webhooks/whatsapp"
	handler, _, _ := webhookFixture(t, token)
	form := twilioForm("whatsapp:+5511999990000", "whatsapp:+5511988880000", "oi")

	// No signature.
	if rec := postForm(handler, form, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("unsigned: status = %d, want 403", rec.Code)
	}

	// Wrong signature.
	bad := func(r *http.Request) { r.Header.Set("X-Twilio-Signature", "bm9wZQ==") }
	if rec := postForm(handler, form, bad); rec.Code != http.StatusForbidden {
		t.Fatalf("bad signature: status = %d, want 403", rec.Code)
	}

	// Valid signature computed the way Twilio does.
	good := func(r *http.Request) {
		r.Header.Set("X-Twilio-Signature", computeTwilioSignature(webhookURL, form, token))
	}
	if rec := postForm(handler, form, good); rec.Code != http.StatusOK {
		t.Fatalf("good signature: status = %d, body %s", rec.Code, rec.Body.String())
	}
}
