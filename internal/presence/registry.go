package presence

import (
	"sort"
	"sync"
)

// Conn is the capability a live client connection exposes to the routing
// core. Emit queues an event for ordered delivery on that connection and
// never blocks the caller.
type Conn interface {
	Emit(event string, data any)
	Close()
}

// Registry tracks which users currently hold a live connection. A user owns
// at most one handle; registering again replaces the previous one.
type Registry interface {
	Register(userID int, conn Conn) (replaced Conn)
	Unregister(conn Conn) (userID int, ok bool)
	IsOnline(userID int) bool
	ConnFor(userID int) (Conn, bool)
	OnlineIDs() []int
	Broadcast(event string, data any)
}

// MemoryRegistry is the single-process Registry used by the routing core.
type MemoryRegistry struct {
	mu     sync.RWMutex
	byUser map[int]Conn
	byConn map[Conn]int
}

// NewRegistry creates an empty MemoryRegistry.
func NewRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byUser: make(map[int]Conn),
		byConn: make(map[Conn]int),
	}
}

// Register binds a user to a connection handle, replacing and returning any
// previous handle (last registration wins).
func (r *MemoryRegistry) Register(userID int, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[userID]
	if prev == conn {
		return nil
	}
	if prev != nil {
		delete(r.byConn, prev)
	}
	r.byUser[userID] = conn
	r.byConn[conn] = userID
	return prev
}

// Unregister removes the entry owning the handle, reporting which user held
// it. A handle replaced by a newer registration is already gone and returns
// ok=false.
func (r *MemoryRegistry) Unregister(conn Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return 0, false
	}
	delete(r.byConn, conn)
	delete(r.byUser, userID)
	return userID, true
}

// IsOnline reports whether the user holds a live connection.
func (r *MemoryRegistry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// ConnFor returns the user's live connection handle.
func (r *MemoryRegistry) ConnFor(userID int) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

// OnlineIDs returns the sorted ids of all connected users.
func (r *MemoryRegistry) OnlineIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Broadcast emits an event to every live connection.
func (r *MemoryRegistry) Broadcast(event string, data any) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.byConn))
	for conn := range r.byConn {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Emit(event, data)
	}
}
