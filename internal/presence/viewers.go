package presence

import (
	"sort"
	"sync"
)

// ViewerTracker records which users currently have a group conversation
// open. Members viewing a group are auto-marked as readers of incoming
// messages and skip unread-count increments.
type ViewerTracker interface {
	Join(groupID, userID int)
	Leave(groupID, userID int)
	Viewers(groupID int) []int
	PurgeUser(userID int)
}

// MemoryViewers is the in-process ViewerTracker.
type MemoryViewers struct {
	mu      sync.Mutex
	viewers map[int]map[int]struct{}
}

// NewViewers creates an empty MemoryViewers.
func NewViewers() *MemoryViewers {
	return &MemoryViewers{viewers: make(map[int]map[int]struct{})}
}

// Join adds the user to the group's viewer set.
func (v *MemoryViewers) Join(groupID, userID int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	set, ok := v.viewers[groupID]
	if !ok {
		set = make(map[int]struct{})
		v.viewers[groupID] = set
	}
	set[userID] = struct{}{}
}

// Leave removes the user; an emptied group entry is dropped entirely.
func (v *MemoryViewers) Leave(groupID, userID int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if set, ok := v.viewers[groupID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(v.viewers, groupID)
		}
	}
}

// Viewers returns the sorted ids currently viewing the group.
func (v *MemoryViewers) Viewers(groupID int) []int {
	v.mu.Lock()
	defer v.mu.Unlock()

	set := v.viewers[groupID]
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PurgeUser removes the user from every viewer set. Called on disconnect so
// no stale viewer entries survive the connection.
func (v *MemoryViewers) PurgeUser(userID int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for groupID, set := range v.viewers {
		delete(set, userID)
		if len(set) == 0 {
			delete(v.viewers, groupID)
		}
	}
}
