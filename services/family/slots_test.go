package family_test

import (
	"testing"

	"vistream/services/family"
)

func TestTotalMembersCountsOwner(t *testing.T) {
	if got := family.TotalMembers(0); got != 1 {
		t.Fatalf("expected owner-only family to have 1 member, got %d", got)
	}
	if got := family.TotalMembers(3); got != 4 {
		t.Fatalf("expected 4 total members, got %d", got)
	}
}

func TestAvailableSlotsCanGoNegative(t *testing.T) {
	if got := family.AvailableSlots(2, 3); got != -2 {
		t.Fatalf("expected -2 available slots, got %d", got)
	}
}

func TestHasAvailableSlots(t *testing.T) {
	cases := []struct {
		name           string
		maxMembers     int
		members        int
		pendingInvites int
		want           bool
	}{
		{"duo owner only", 2, 0, 0, true},
		{"duo owner with pending invite", 2, 0, 1, false},
		{"duo full", 2, 1, 0, false},
		{"family one member one invite", 4, 1, 1, true},
		{"family one member two invites", 4, 1, 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := family.HasAvailableSlots(tc.maxMembers, tc.members, tc.pendingInvites)
			if got != tc.want {
				t.Fatalf("HasAvailableSlots(%d, %d, %d) = %v, want %v",
					tc.maxMembers, tc.members, tc.pendingInvites, got, tc.want)
			}
		})
	}
}
