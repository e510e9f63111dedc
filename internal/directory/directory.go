// Package directory is the in-memory registry mapping a group id to the set
// of currently subscribed connections. It holds no durable state: after a
// restart every client has to join again.
package directory

import "sync"

// Directory is safe for concurrent use by connections joining, leaving and
// disconnecting while broadcasts read subscriber sets.
type Directory struct {
	mu      sync.RWMutex
	byGroup map[string]map[string]struct{}
	byConn  map[string]map[string]struct{}
}

func New() *Directory {
	return &Directory{
		byGroup: make(map[string]map[string]struct{}),
		byConn:  make(map[string]map[string]struct{}),
	}
}

// Join subscribes a connection to a group. Idempotent.
func (d *Directory) Join(connID, groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.byGroup[groupID] == nil {
		d.byGroup[groupID] = make(map[string]struct{})
	}
	d.byGroup[groupID][connID] = struct{}{}

	if d.byConn[connID] == nil {
		d.byConn[connID] = make(map[string]struct{})
	}
	d.byConn[connID][groupID] = struct{}{}
}

// Leave removes one subscription. Idempotent.
func (d *Directory) Leave(connID, groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(connID, groupID)
}

// RemoveConnection drops every subscription held by the connection. Used on
// disconnect; it is the only cleanup path.
func (d *Directory) RemoveConnection(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for groupID := range d.byConn[connID] {
		d.remove(connID, groupID)
	}
}

// remove must be called with d.mu held.
func (d *Directory) remove(connID, groupID string) {
	if subs := d.byGroup[groupID]; subs != nil {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(d.byGroup, groupID)
		}
	}
	if groups := d.byConn[connID]; groups != nil {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(d.byConn, connID)
		}
	}
}

// SubscribersOf returns a snapshot of the connections currently joined to a
// group. Order among subscribers is unspecified.
func (d *Directory) SubscribersOf(groupID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs := d.byGroup[groupID]
	snapshot := make([]string, 0, len(subs))
	for connID := range subs {
		snapshot = append(snapshot, connID)
	}
	return snapshot
}
