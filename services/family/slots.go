package family

// TotalMembers is the number of occupied slots in a family. The owner always
// occupies one slot on top of the joined members.
func TotalMembers(memberCount int) int {
	return memberCount + 1
}

// AvailableSlots is the number of free slots. Callers decide how to treat a
// negative result; a family shrunk below its occupancy reports the deficit.
func AvailableSlots(maxMembers, memberCount int) int {
	return maxMembers - TotalMembers(memberCount)
}

// HasAvailableSlots reports whether a new invite can be issued. Pending
// invites reserve slots so the family can never be oversubscribed by
// outstanding invitations.
func HasAvailableSlots(maxMembers, memberCount, pendingInvites int) bool {
	return AvailableSlots(maxMembers, memberCount)-pendingInvites > 0
}
