package models

// UnreadCounts maps member ids to pending message counts for one group.
// Absent members read as zero; entries for removed members may linger until
// the group is deleted.
type UnreadCounts map[int]int

// Get returns the count for userID, zero when no entry exists.
func (u UnreadCounts) Get(userID int) int {
	return u[userID]
}
