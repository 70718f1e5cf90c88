package room

import "github.com/watchparty/watchparty/pkg/network"

// HostDesignation is the NoHost / HasHost(id) state machine.
// The empty id stands for NoHost.
type HostDesignation struct {
	id network.Uid
}

func (h *HostDesignation) Current() network.Uid { return h.id }
func (h *HostDesignation) Has() bool            { return !h.id.IsEmpty() }
func (h *HostDesignation) Is(id network.Uid) bool {
	return h.Has() && h.id == id
}

// Declare makes the participant a host, taking it over from anyone else.
// Returns the previous host if any.
func (h *HostDesignation) Declare(id network.Uid) (prev network.Uid) {
	prev, h.id = h.id, id
	return
}

// Leave handles a disconnect, true means the host itself has gone.
func (h *HostDesignation) Leave(id network.Uid) bool {
	if !h.Is(id) {
		return false
	}
	h.id = network.EmptyUid
	return true
}
