// Package guard decides whether a session may enter a role-gated route and,
// when it may not, where the client should be sent instead.
package guard

import "jobportal/internal/database"

// Client-side paths the guard redirects to.
const (
	SignInPath             = "/signin"
	EmployerDashboardPath  = "/dashboard/employer"
	JobSeekerDashboardPath = "/dashboard/job-seeker"
)

// Role restricts a route to one user type. RoleAny admits every session.
type Role string

const (
	RoleAny       Role = ""
	RoleApplicant Role = database.UserTypeApplicant
	RoleCompany   Role = database.UserTypeCompany
)

// Session is the identity extracted from a valid access token.
type Session struct {
	UserID   uint
	UserType string
}

// Outcome of a guard check.
type Outcome int

const (
	Allow Outcome = iota
	NoSession
	WrongRole
)

// Decision carries the outcome and the redirect target for rejected sessions.
type Decision struct {
	Outcome  Outcome
	Redirect string
}

// Check evaluates a session against the required role. A nil session means
// the token was missing or failed validation.
func Check(session *Session, required Role) Decision {
	if session == nil || session.UserID == 0 {
		return Decision{Outcome: NoSession, Redirect: SignInPath}
	}
	if required == RoleAny || Role(session.UserType) == required {
		return Decision{Outcome: Allow}
	}
	return Decision{Outcome: WrongRole, Redirect: DashboardPath(session.UserType)}
}

// DashboardPath returns the dashboard that belongs to a user type.
func DashboardPath(userType string) string {
	if userType == database.UserTypeCompany {
		return EmployerDashboardPath
	}
	return JobSeekerDashboardPath
}
