package models

import "time"

// Plan identifiers. Solo is the base single-screen plan; duo and family grant
// shareable screens.
const (
	PlanSolo   = "solo"
	PlanDuo    = "duo"
	PlanFamily = "family"
)

// BaseScreenCount is the seat capacity of an account without a plan.
const BaseScreenCount = 1

// PlanScreenCount returns the seat capacity granted by a plan. Unknown plans
// fall back to the base capacity.
func PlanScreenCount(planID string) int {
	switch planID {
	case PlanDuo:
		return 2
	case PlanFamily:
		return 4
	default:
		return BaseScreenCount
	}
}

// User is an account holder. PlanID is empty when no plan (or an expired
// trial) is attached.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	PasswordHash  string     `json:"-"`
	PlanID        string     `json:"planId,omitempty"`
	ScreenCount   int        `json:"screenCount"`
	TrialEndsAt   *time.Time `json:"trialEndsAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// HasFamilyPlan reports whether the user's plan can share screens with other
// members.
func (u User) HasFamilyPlan() bool {
	return PlanScreenCount(u.PlanID) > 1
}
