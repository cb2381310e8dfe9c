package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// RegistrationRequest is a not-yet-approved applicant. It is built locally,
// submitted once, and owned by the backend afterwards.
type RegistrationRequest struct {
	Name              string    `json:"name"`
	Mobile            string    `json:"mobile"`
	Email             string    `json:"email"`
	DOB               string    `json:"dob"`
	BusinessName      string    `json:"business_name"`
	State             string    `json:"state"`
	RequestedRole     Role      `json:"requested_role"`
	AgreementAccepted bool      `json:"agreement_accepted"`
	Location          *Location `json:"location,omitempty"`
}

// Validate rejects a submission before any network call. The agreement gate
// in particular must hold client-side: the backend accepts the field as-is.
func (r RegistrationRequest) Validate() error {
	if !r.AgreementAccepted {
		return fmt.Errorf("%w: agreement must be accepted", ErrValidation)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := ValidateMobile(r.Mobile); err != nil {
		return err
	}
	if r.DOB != "" {
		if _, err := time.Parse("2006-01-02", r.DOB); err != nil {
			return fmt.Errorf("%w: dob must be YYYY-MM-DD", ErrValidation)
		}
	}
	if strings.TrimSpace(r.State) == "" {
		return fmt.Errorf("%w: state is required", ErrValidation)
	}
	return nil
}

// ValidateMobile enforces the ten-digit Indian mobile format the backend
// expects on every identity-bearing endpoint.
func ValidateMobile(mobile string) error {
	if !mobilePattern.MatchString(strings.TrimSpace(mobile)) {
		return fmt.Errorf("%w: mobile must be a 10-digit number", ErrValidation)
	}
	return nil
}
