package models

import "time"

// FamilyInvite statuses.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
	InviteStatusExpired  = "expired"
)

// Family groups a plan owner with the members sharing their screens. A family
// row is created lazily on the first invite; until then the owner's slot is
// accounted for virtually.
type Family struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	MaxMembers int       `json:"maxMembers"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FamilyMember is a user occupying a slot in someone else's family.
type FamilyMember struct {
	ID       string    `json:"id"`
	FamilyID string    `json:"familyId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// FamilyInvite reserves a family slot until it is accepted, revoked, or
// expires. An invite with no email is an open invite claimable by anyone.
type FamilyInvite struct {
	ID        string     `json:"id"`
	FamilyID  string     `json:"familyId"`
	Token     string     `json:"token"`
	Email     string     `json:"email,omitempty"`
	Status    string     `json:"status"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedBy    string     `json:"usedBy,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

// FamilySummary is the plan panel view of slot usage for a family owner.
type FamilySummary struct {
	PlanID         string         `json:"planId,omitempty"`
	MaxMembers     int            `json:"maxMembers"`
	MembersUsed    int            `json:"membersUsed"`
	AvailableSlots int            `json:"availableSlots"`
	PendingInvites int            `json:"pendingInvites"`
	Members        []FamilyMember `json:"members,omitempty"`
	Invites        []FamilyInvite `json:"invites,omitempty"`
}
