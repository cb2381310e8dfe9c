package domain

import (
	"strings"
	"time"
)

// Role is the backend-assigned account role. Header roles outrank the
// distributor shape of the same payload when deciding portal routing.
type Role string

const (
	RoleRetailer         Role = "RETAILER"
	RoleDistributor      Role = "DISTRIBUTOR"
	RoleSuperDistributor Role = "SUPER_DISTRIBUTOR"
	RoleNationalHeader   Role = "NATIONAL_HEADER"
	RoleStateHeader      Role = "STATE_HEADER"
	RoleRegionalHeader   Role = "REGIONAL_HEADER"
	RoleAdmin            Role = "ADMIN"
)

// ParseRole canonicalizes a backend role string. Unknown or empty values
// degrade to RETAILER, matching the dispatcher's default rule.
func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleDistributor:
		return RoleDistributor
	case RoleSuperDistributor:
		return RoleSuperDistributor
	case RoleNationalHeader:
		return RoleNationalHeader
	case RoleStateHeader:
		return RoleStateHeader
	case RoleRegionalHeader:
		return RoleRegionalHeader
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleRetailer
	}
}

// IsHeader reports whether the role is one of the geography header roles.
func (r Role) IsHeader() bool {
	return r == RoleNationalHeader || r == RoleStateHeader || r == RoleRegionalHeader
}

// ApprovalStatus is the administrator approval state of an account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ParseApprovalStatus canonicalizes the backend's approval field. Anything
// unrecognized is treated as PENDING so the approval gate fails closed.
func ParseApprovalStatus(raw string) ApprovalStatus {
	switch ApprovalStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case ApprovalApproved:
		return ApprovalApproved
	case ApprovalRejected:
		return ApprovalRejected
	default:
		return ApprovalPending
	}
}

// Location is an optional device geolocation captured at login time.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Session is the authenticated, role-bearing principal. The Token field is
// the backend's opaque bearer credential and is never interpreted locally.
type Session struct {
	UserID        string         `json:"user_id"`
	Role          Role           `json:"role"`
	Mobile        string         `json:"mobile"`
	BusinessName  string         `json:"business_name"`
	WalletBalance float64        `json:"wallet_balance"`
	Token         string         `json:"token"`
	Approval      ApprovalStatus `json:"approval_status"`
	Plan          string         `json:"plan,omitempty"`
	LoggedInAt    time.Time      `json:"logged_in_at"`
}

// Approved reports whether the session passed the administrator approval gate.
func (s Session) Approved() bool { return s.Approval == ApprovalApproved }

// Wallet is the cached wallet snapshot shown by the portal chrome.
type Wallet struct {
	Balance   float64   `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginRecord is one entry of the locally cached login history.
type LoginRecord struct {
	Identity  string    `json:"identity"`
	Method    string    `json:"method"`
	Portal    string    `json:"portal"`
	At        time.Time `json:"at"`
	Succeeded bool      `json:"succeeded"`
}

// LoginMethod distinguishes the two credential exchanges the backend offers.
type LoginMethod string

const (
	MethodPassword LoginMethod = "PASSWORD"
	MethodOTP      LoginMethod = "OTP"
)

// CandidateUser is the unconfirmed profile returned by the OTP-request step.
// It exists only inside a pending login and is promoted into a Session by a
// successful verification.
type CandidateUser struct {
	UserID       string         `json:"user_id"`
	Role         Role           `json:"role"`
	Mobile       string         `json:"mobile"`
	BusinessName string         `json:"business_name"`
	Approval     ApprovalStatus `json:"approval_status"`
}
