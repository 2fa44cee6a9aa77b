// Package roster implements a Server-Side/Stored Information (SSI) style
// engine for syncing a buddy list, group structure and permit/deny
// preferences against a server. It is ported from
// oscar's ssi.c: a flat item list indexed by (group id, item id) pairs,
// a one-item-in-flight ack queue for server-bound mutations, and a
// rebuild-on-demand membership index per group.
package roster

import (
	"sync"

	"github.com/chatcore/corerun/corerrs"
	"github.com/chatcore/corerun/metrics"
)

// Kind mirrors ssi.c's AIM_SSI_TYPE_* discriminant.
type Kind int

const (
	KindBuddy Kind = iota
	KindGroup
	KindPermit
	KindDeny
	KindPermitDenyInfo
	KindPresencePrefs
)

// Item is one entry of the roster (a buddy, a group, a permit/deny
// entry, or a singleton preference record), mirroring struct
// aim_ssi_item.
type Item struct {
	GroupID uint16
	ItemID  uint16
	Name    string
	Kind    Kind

	// Data carries kind-specific TLV-like payload: for a group, the
	// ordered list of its buddies' ItemIDs (ssi.c's 0x00c8 TLV); for
	// the permit/deny-info singleton, the permit/deny setting byte;
	// for the presence-prefs singleton, the visibility bitmask.
	Data any
}

// op is a queued mutation awaiting acknowledgement.
type op struct {
	kind string // "add", "mod", "del"
	item *Item
}

// List is the local mirror of the server-stored roster, plus the
// holding queue that serializes outbound mutations one at a time
// (ssi.c's aim_ssi_enqueue/aim_ssi_dispatch).
type List struct {
	mu sync.Mutex

	items []*Item

	holdingQueue []op
	waitingAck   bool
	send         func(op) error
}

// New returns an empty List. send is invoked for exactly one op at a
// time, once any previous op has been acknowledged via Ack.
func New(send func(op) error) *List {
	return &List{send: send}
}

// nextGroupID returns the lowest group id not already in use, mirroring
// ssi.c's "newitem->gid += 1" collision-probing loop.
func (l *List) nextGroupID() uint16 {
	var id uint16
	for {
		id++
		collide := false
		for _, it := range l.items {
			if it.GroupID == id && it.Kind == KindGroup {
				collide = true
				break
			}
		}
		if !collide {
			return id
		}
	}
}

// nextItemID returns the lowest item id not already in use within
// groupID, mirroring ssi.c's "newitem->bid += 1" loop.
func (l *List) nextItemID(groupID uint16) uint16 {
	var id uint16
	for {
		id++
		collide := false
		for _, it := range l.items {
			if it.ItemID == id && it.GroupID == groupID {
				collide = true
				break
			}
		}
		if !collide {
			return id
		}
	}
}

// Add locally allocates and inserts a new item (ssi.c's
// aim_ssi_itemlist_add), then queues the corresponding server-bound add
// op. parentGroupID is ignored for KindGroup items (groups are always
// parented at the root, group id 0).
func (l *List) Add(name string, kind Kind, parentGroupID uint16) *Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := &Item{Name: name, Kind: kind}
	if kind == KindGroup {
		item.GroupID = l.nextGroupID()
	} else {
		item.GroupID = parentGroupID
		item.ItemID = l.nextItemID(parentGroupID)
	}
	l.items = append(l.items, item)
	l.rebuildGroupLocked(item.GroupID)
	l.enqueueLocked(op{kind: "add", item: item})
	return item
}

// Remove deletes item from the local list and queues the matching
// server-bound delete op.
func (l *List) Remove(item *Item) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, it := range l.items {
		if it == item {
			l.items = append(l.items[:i], l.items[i+1:]...)
			l.rebuildGroupLocked(item.GroupID)
			l.enqueueLocked(op{kind: "del", item: item})
			return true
		}
	}
	return false
}

// Find looks up the item at (groupID, itemID), mirroring
// aim_ssi_itemlist_find.
func (l *List) Find(groupID, itemID uint16) *Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.items {
		if it.GroupID == groupID && it.ItemID == itemID {
			return it
		}
	}
	return nil
}

// FindItem looks up an item by (optional) group name, name, and kind,
// mirroring aim_ssi_itemlist_finditem's three search modes: both names
// given narrows to a buddy within a named group; only name given finds
// a group/permit/deny/etc by name; neither given returns the first item
// of the given kind (used for the PDInfo/PresencePrefs singletons).
func (l *List) FindItem(groupName, name string, kind Kind) *Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case groupName != "" && name != "":
		for _, it := range l.items {
			if it.Kind != kind || it.Name != name {
				continue
			}
			for _, g := range l.items {
				if g.Kind == KindGroup && g.GroupID == it.GroupID && g.Name == groupName {
					return it
				}
			}
		}
	case name != "":
		for _, it := range l.items {
			if it.Kind == kind && it.Name == name {
				return it
			}
		}
	default:
		for _, it := range l.items {
			if it.Kind == kind {
				return it
			}
		}
	}
	return nil
}

// FindParent returns the group item owning the named buddy, mirroring
// aim_ssi_itemlist_findparent.
func (l *List) FindParent(buddyName string) *Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	var buddy *Item
	for _, it := range l.items {
		if it.Kind == KindBuddy && it.Name == buddyName {
			buddy = it
			break
		}
	}
	if buddy == nil {
		return nil
	}
	for _, g := range l.items {
		if g.Kind == KindGroup && g.GroupID == buddy.GroupID {
			return g
		}
	}
	return nil
}

// rebuildGroupLocked recomputes a group's member-id list (ssi.c's
// aim_ssi_itemlist_rebuildgroup). groupID 0 rebuilds the root's list of
// top-level group ids instead of a buddy list. The caller must hold l.mu.
func (l *List) rebuildGroupLocked(groupID uint16) {
	var parent *Item
	if groupID != 0 {
		for _, it := range l.items {
			if it.Kind == KindGroup && it.GroupID == groupID {
				parent = it
				break
			}
		}
		if parent == nil {
			return
		}
	}

	var ids []uint16
	if groupID == 0 {
		for _, it := range l.items {
			if it.Kind == KindGroup {
				ids = append(ids, it.GroupID)
			}
		}
	} else {
		for _, it := range l.items {
			if it.GroupID == groupID && it.Kind == KindBuddy {
				ids = append(ids, it.ItemID)
			}
		}
	}

	if groupID == 0 {
		for _, it := range l.items {
			if it.Kind == KindGroup && it.GroupID == 0 {
				it.Data = ids
				return
			}
		}
		return
	}
	parent.Data = ids
}

// PermitDeny returns the current permit/deny setting, or 0 if unset
// (aim_ssi_getpermdeny).
func (l *List) PermitDeny() int {
	item := l.FindItem("", "", KindPermitDenyInfo)
	if item == nil {
		return 0
	}
	v, _ := item.Data.(int)
	return v
}

// SetPermitDeny sets the permit/deny setting, creating the singleton
// PDInfo item on first use and queueing the resulting mod/add.
func (l *List) SetPermitDeny(v int) {
	l.mu.Lock()
	item := l.findItemLocked("", "", KindPermitDenyInfo)
	if item == nil {
		item = &Item{Kind: KindPermitDenyInfo}
		l.items = append(l.items, item)
		item.Data = v
		l.enqueueLocked(op{kind: "add", item: item})
		l.mu.Unlock()
		return
	}
	item.Data = v
	l.enqueueLocked(op{kind: "mod", item: item})
	l.mu.Unlock()
}

// Presence returns the current visibility bitmask, or all-ones
// ("visible to everyone") if unset (aim_ssi_getpresence).
func (l *List) Presence() uint32 {
	item := l.FindItem("", "", KindPresencePrefs)
	if item == nil {
		return 0xFFFFFFFF
	}
	v, _ := item.Data.(uint32)
	return v
}

// SetPresence sets the visibility bitmask, creating the singleton
// PresencePrefs item on first use.
func (l *List) SetPresence(mask uint32) {
	l.mu.Lock()
	item := l.findItemLocked("", "", KindPresencePrefs)
	if item == nil {
		item = &Item{Kind: KindPresencePrefs, Data: mask}
		l.items = append(l.items, item)
		l.enqueueLocked(op{kind: "add", item: item})
		l.mu.Unlock()
		return
	}
	item.Data = mask
	l.enqueueLocked(op{kind: "mod", item: item})
	l.mu.Unlock()
}

// findItemLocked is FindItem's singleton-search mode, callable while
// l.mu is already held.
func (l *List) findItemLocked(groupName, name string, kind Kind) *Item {
	for _, it := range l.items {
		if it.Kind == kind {
			return it
		}
	}
	return nil
}

// enqueueLocked appends o to the holding queue, starting dispatch if
// nothing is currently in flight (ssi.c's aim_ssi_enqueue). The caller
// must hold l.mu.
func (l *List) enqueueLocked(o op) {
	l.holdingQueue = append(l.holdingQueue, o)
	if !l.waitingAck {
		l.dispatchLocked()
	}
	l.reportQueueDepthLocked()
}

// reportQueueDepthLocked publishes the current queue depth to the
// metrics package. The caller must hold l.mu.
func (l *List) reportQueueDepthLocked() {
	n := len(l.holdingQueue)
	if l.waitingAck {
		n++
	}
	metrics.SetRosterQueueDepth(n)
}

// dispatchLocked sends the next queued op, or is a no-op if one is
// already in flight (ssi.c's aim_ssi_dispatch). The caller must hold
// l.mu; send is invoked with the lock released to avoid reentrant
// deadlock if send synchronously calls back into the List.
func (l *List) dispatchLocked() {
	if l.waitingAck || len(l.holdingQueue) == 0 {
		return
	}
	next := l.holdingQueue[0]
	l.holdingQueue = l.holdingQueue[1:]
	l.waitingAck = true

	send := l.send
	l.mu.Unlock()
	err := send(next)
	l.mu.Lock()
	if err != nil {
		// The caller observes failures via Ack(false, ...); surface a
		// synchronous send error the same way so the queue never wedges.
		l.waitingAck = false
		l.dispatchLocked()
	}
}

// Ack reports the outcome of the in-flight op and dispatches the next
// queued one, mirroring the ack-driven continuation in ssi.c (dispatch
// is called again once an add/mod/del ack arrives).
func (l *List) Ack(ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitingAck = false
	if !ok {
		// Nothing else to roll back to locally; the caller is
		// responsible for deciding whether to retry the mutation.
	}
	l.dispatchLocked()
	l.reportQueueDepthLocked()
}

// PendingCount reports how many ops remain queued, including the one
// in flight if any — useful for tests asserting drain behavior.
func (l *List) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.holdingQueue)
	if l.waitingAck {
		n++
	}
	return n
}

// Clean restores the list's structural invariants (aim_ssi_cleanlist):
// buddies left behind by an out-of-band group deletion are dropped,
// buddies sitting directly in the master group (group id 0) are moved
// into an existing group or a freshly created "Unknown" one, every
// group's membership TLV is rebuilt, and any group left with no members
// afterward is deleted. Returns the number of items removed.
func (l *List) Clean() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	groupIDs := map[uint16]bool{}
	for _, it := range l.items {
		if it.Kind == KindGroup {
			groupIDs[it.GroupID] = true
		}
	}

	removed := 0

	// Drop buddies whose group was deleted out from under them. Group id
	// 0 is the master group, not an orphan — handled below.
	kept := l.items[:0]
	for _, it := range l.items {
		if it.Kind == KindBuddy && it.GroupID != 0 && !groupIDs[it.GroupID] {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	l.items = kept

	// Migrate any buddy left directly in the master group into a real
	// one, creating "Unknown" if the list has no group at all.
	var unassigned []*Item
	for _, it := range l.items {
		if it.Kind == KindBuddy && it.GroupID == 0 {
			unassigned = append(unassigned, it)
		}
	}
	if len(unassigned) > 0 {
		parentID := l.findOrCreateUnknownGroupLocked()
		for _, it := range unassigned {
			it.GroupID = parentID
			it.ItemID = l.nextItemID(parentID)
			l.enqueueLocked(op{kind: "mod", item: it})
		}
	}

	// Rebuild every group's membership TLV, including the root's list of
	// top-level group ids.
	l.rebuildGroupLocked(0)
	for _, it := range l.items {
		if it.Kind == KindGroup {
			l.rebuildGroupLocked(it.GroupID)
		}
	}

	// Delete any group left with no members.
	kept = l.items[:0]
	for _, it := range l.items {
		if it.Kind == KindGroup {
			if ids, _ := it.Data.([]uint16); len(ids) == 0 {
				removed++
				l.enqueueLocked(op{kind: "del", item: it})
				continue
			}
		}
		kept = append(kept, it)
	}
	l.items = kept

	return removed
}

// findOrCreateUnknownGroupLocked returns the group id of an arbitrary
// existing group, or creates one named "Unknown" if the list has none,
// to give orphaned master-group buddies somewhere to land. The caller
// must hold l.mu.
func (l *List) findOrCreateUnknownGroupLocked() uint16 {
	for _, it := range l.items {
		if it.Kind == KindGroup {
			return it.GroupID
		}
	}
	group := &Item{Name: "Unknown", Kind: KindGroup, GroupID: l.nextGroupID()}
	l.items = append(l.items, group)
	l.enqueueLocked(op{kind: "add", item: group})
	return group.GroupID
}

// Items returns a snapshot of the roster's items in insertion order.
func (l *List) Items() []*Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Item, len(l.items))
	copy(out, l.items)
	return out
}

// ErrQueueEmpty is returned by callers that expect an in-flight op but
// find none.
var ErrQueueEmpty = corerrs.OtherServer("roster: no operation in flight")
