package whatsapp

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// SanitizePhone strips everything but digits, including the "whatsapp:+"
// channel prefix Twilio puts on From/To values.
func SanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}

// NormalizePhone canonicalizes a Brazilian phone number to digits with the
// country code. Local 10- and 11-digit numbers (area code + subscriber, with
// or without the mobile ninth digit) gain the 55 prefix so that the pending
// store keys the same client identically across messages.
func NormalizePhone(value string) string {
	digits := SanitizePhone(value)
	if digits == "" {
		return ""
	}
	if len(digits) == 10 || len(digits) == 11 {
		return "55" + digits
	}
	return digits
}

// NormalizeE164 renders the canonical number with the leading plus.
func NormalizeE164(value string) string {
	digits := NormalizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}
