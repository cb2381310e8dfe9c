package domain

// Locale is the process-wide language preference. It is persisted alongside
// the session record but lives independently of it.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleHindi   Locale = "hi"
)

// ParseLocale degrades anything unrecognized to English.
func ParseLocale(raw string) Locale {
	if Locale(raw) == LocaleHindi {
		return LocaleHindi
	}
	return LocaleEnglish
}

// AppState is the single persisted application record: current principal,
// wallet snapshot, recent login history, and language preference. It is
// always read and written as one unit, never patched field by field.
type AppState struct {
	CurrentUser  *Session      `json:"current_user"`
	Wallet       Wallet        `json:"wallet"`
	LoginHistory []LoginRecord `json:"login_history"`
	Locale       Locale        `json:"locale"`
}

// EmptyState is the no-session default used when storage is missing or
// unparseable.
func EmptyState() AppState {
	return AppState{Locale: LocaleEnglish}
}

// Clone deep-copies the state so subscribers and callers can never alias the
// store's internal snapshot.
func (s AppState) Clone() AppState {
	out := s
	if s.CurrentUser != nil {
		cp := *s.CurrentUser
		out.CurrentUser = &cp
	}
	if s.LoginHistory != nil {
		out.LoginHistory = make([]LoginRecord, len(s.LoginHistory))
		copy(out.LoginHistory, s.LoginHistory)
	}
	return out
}
