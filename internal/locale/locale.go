// Package locale exposes the process-wide language preference and the
// translation lookup backed by it. The preference persists through the
// application store independently of the session, so it survives logout.
package locale

import (
	"context"

	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/store"
)

// Translator reads the active locale from the store on every lookup, so a
// toggle is visible to all readers immediately after the store notifies.
type Translator struct {
	store *store.Store
}

func NewTranslator(s *store.Store) *Translator {
	return &Translator{store: s}
}

// Current returns the active language code.
func (t *Translator) Current() domain.Locale {
	return t.store.Locale()
}

// Set persists the preference. The session, if any, is untouched.
func (t *Translator) Set(ctx context.Context, l domain.Locale) {
	t.store.SetLocale(ctx, l)
}

// Toggle flips between the two supported languages.
func (t *Translator) Toggle(ctx context.Context) domain.Locale {
	next := domain.LocaleHindi
	if t.store.Locale() == domain.LocaleHindi {
		next = domain.LocaleEnglish
	}
	t.store.SetLocale(ctx, next)
	return next
}

// T resolves a message key in the active language. Unknown keys fall back to
// the key itself; lookup never fails.
func (t *Translator) T(key string) string {
	table, ok := messages[t.store.Locale()]
	if !ok {
		table = messages[domain.LocaleEnglish]
	}
	if msg, ok := table[key]; ok {
		return msg
	}
	// English is the fallback table for keys missing a Hindi entry.
	if msg, ok := messages[domain.LocaleEnglish][key]; ok {
		return msg
	}
	return key
}

var messages = map[domain.Locale]map[string]string{
	domain.LocaleEnglish: {
		"login.title":               "Sign in to your portal",
		"login.identity":            "Mobile number or username",
		"login.password":            "Password",
		"login.otp":                 "One-time password",
		"login.submit":              "Sign in",
		"login.request_otp":         "Send OTP",
		"login.back":                "Re-enter mobile number",
		"login.forgot":              "Forgot password?",
		"error.invalid_credentials": "Invalid credentials. Check your details and try again.",
		"error.invalid_otp":         "The code you entered is incorrect.",
		"error.user_not_found":      "No account found for this mobile number.",
		"error.pending_approval":    "Your account is awaiting administrator approval.",
		"error.duplicate_mobile":    "This mobile number is already registered.",
		"error.connection":          "Could not reach the server. Check your connection.",
		"error.captcha":             "Captcha did not match. Try a new one.",
		"register.title":            "Apply for an account",
		"register.agreement":        "I accept the service agreement",
		"register.submitted":        "Application submitted. You will be notified after approval.",
		"forgot.submitted":          "Reset instructions sent if the details matched.",
		"wallet.balance":            "Wallet balance",
	},
	domain.LocaleHindi: {
		"login.title":               "अपने पोर्टल में साइन इन करें",
		"login.identity":            "मोबाइल नंबर या उपयोगकर्ता नाम",
		"login.password":            "पासवर्ड",
		"login.otp":                 "वन-टाइम पासवर्ड",
		"login.submit":              "साइन इन करें",
		"login.request_otp":         "OTP भेजें",
		"login.back":                "मोबाइल नंबर दोबारा दर्ज करें",
		"login.forgot":              "पासवर्ड भूल गए?",
		"error.invalid_credentials": "गलत विवरण। कृपया जाँच कर पुनः प्रयास करें।",
		"error.invalid_otp":         "दर्ज किया गया कोड गलत है।",
		"error.user_not_found":      "इस मोबाइल नंबर से कोई खाता नहीं मिला।",
		"error.pending_approval":    "आपका खाता व्यवस्थापक की स्वीकृति की प्रतीक्षा में है।",
		"error.duplicate_mobile":    "यह मोबाइल नंबर पहले से पंजीकृत है।",
		"error.connection":          "सर्वर से संपर्क नहीं हो सका। अपना कनेक्शन जाँचें।",
		"error.captcha":             "कैप्चा मेल नहीं खाया। नया प्रयास करें।",
		"register.title":            "खाते के लिए आवेदन करें",
		"register.agreement":        "मैं सेवा अनुबंध स्वीकार करता/करती हूँ",
		"register.submitted":        "आवेदन जमा हो गया। स्वीकृति के बाद सूचित किया जाएगा।",
		"forgot.submitted":          "विवरण मेल खाने पर रीसेट निर्देश भेजे गए।",
		"wallet.balance":            "वॉलेट शेष",
	},
}
