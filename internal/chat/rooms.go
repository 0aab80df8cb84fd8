package chat

import (
	"sort"
	"sync"
)

type memberSet map[string]struct{}

// RoomInfo is a read-only view of one room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomRegistry maps room names to the nicknames joined to them. Rooms are
// created on first join and never destroyed.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]memberSet
}

// NewRoomRegistry creates a registry with the given rooms already present and
// empty. Blank names are skipped.
func NewRoomRegistry(names ...string) *RoomRegistry {
	r := &RoomRegistry{rooms: make(map[string]memberSet)}
	for _, name := range names {
		if name = NormalizeRoom(name); name != "" {
			r.rooms[name] = make(memberSet)
		}
	}
	return r
}

// Join adds nickname to the room, creating the room if needed. It reports
// whether the membership changed; joining twice is a no-op.
func (r *RoomRegistry) Join(room, nickname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(memberSet)
		r.rooms[room] = members
	}
	if _, joined := members[nickname]; joined {
		return false
	}
	members[nickname] = struct{}{}
	return true
}

// IsMember reports whether nickname has joined room.
func (r *RoomRegistry) IsMember(room, nickname string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[room][nickname]
	return ok
}

// Members returns the sorted members of room.
func (r *RoomRegistry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedMembers(r.rooms[room])
}

// membersFor returns the members of room, but only when sender is one of them.
// Checking and reading under one lock keeps a concurrent join from slipping in
// between.
func (r *RoomRegistry) membersFor(room, sender string) (memberSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	if _, joined := members[sender]; !joined {
		return nil, false
	}
	snapshot := make(memberSet, len(members))
	for nickname := range members {
		snapshot[nickname] = struct{}{}
	}
	return snapshot, true
}

// Rooms lists every room sorted by name.
func (r *RoomRegistry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(r.rooms))
	for name, members := range r.rooms {
		infos = append(infos, RoomInfo{Name: name, Members: len(members)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func sortedMembers(members memberSet) []string {
	out := make([]string, 0, len(members))
	for nickname := range members {
		out = append(out, nickname)
	}
	sort.Strings(out)
	return out
}
