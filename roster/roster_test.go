package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsDistinctGroupIDs(t *testing.T) {
	var sent []op
	l := New(func(o op) error {
		sent = append(sent, o)
		return nil
	})

	g1 := l.Add("Friends", KindGroup, 0)
	g2 := l.Add("Work", KindGroup, 0)
	assert.NotEqual(t, g1.GroupID, g2.GroupID)
	assert.Equal(t, uint16(1), g1.GroupID)
	assert.Equal(t, uint16(2), g2.GroupID)
}

func TestAddBuddyGetsDistinctItemIDsWithinGroup(t *testing.T) {
	l := New(func(o op) error { return nil })
	g := l.Add("Friends", KindGroup, 0)

	b1 := l.Add("alice", KindBuddy, g.GroupID)
	b2 := l.Add("bob", KindBuddy, g.GroupID)
	assert.NotEqual(t, b1.ItemID, b2.ItemID)
	assert.Equal(t, g.GroupID, b1.GroupID)
	assert.Equal(t, g.GroupID, b2.GroupID)
}

// Seed scenario 5: the one-in-flight holding queue serializes mutations
// and drains strictly in order as acks arrive.
func TestHoldingQueueSerializesOneAtATime(t *testing.T) {
	var inFlight int
	var order []string
	l := New(func(o op) error {
		inFlight++
		require.LessOrEqual(t, inFlight, 1, "at most one op may be in flight")
		order = append(order, o.kind+":"+o.item.Name)
		return nil
	})

	g := l.Add("Friends", KindGroup, 0)
	l.Add("alice", KindBuddy, g.GroupID)
	l.Add("bob", KindBuddy, g.GroupID)

	// Only the first op (the group add) should have been dispatched so
	// far; the rest sit in the holding queue.
	assert.Equal(t, []string{"add:Friends"}, order)
	assert.Equal(t, 3, l.PendingCount(), "two queued plus the one in flight")

	inFlight--
	l.Ack(true)
	assert.Equal(t, []string{"add:Friends", "add:alice"}, order)

	inFlight--
	l.Ack(true)
	assert.Equal(t, []string{"add:Friends", "add:alice", "add:bob"}, order)

	inFlight--
	l.Ack(true)
	assert.Equal(t, 0, l.PendingCount())
}

func TestFindItemGroupAndNameScoped(t *testing.T) {
	l := New(func(o op) error { return nil })
	g := l.Add("Friends", KindGroup, 0)
	l.Add("alice", KindBuddy, g.GroupID)

	found := l.FindItem("Friends", "alice", KindBuddy)
	require.NotNil(t, found)
	assert.Equal(t, "alice", found.Name)

	assert.Nil(t, l.FindItem("Work", "alice", KindBuddy))
}

func TestFindParent(t *testing.T) {
	l := New(func(o op) error { return nil })
	g := l.Add("Friends", KindGroup, 0)
	l.Add("alice", KindBuddy, g.GroupID)

	parent := l.FindParent("alice")
	require.NotNil(t, parent)
	assert.Equal(t, "Friends", parent.Name)
}

func TestPermitDenyDefaultsAndRoundTrips(t *testing.T) {
	l := New(func(o op) error { return nil })
	assert.Equal(t, 0, l.PermitDeny())

	l.SetPermitDeny(3)
	assert.Equal(t, 3, l.PermitDeny())
}

func TestPresenceDefaultsToVisibleToAll(t *testing.T) {
	l := New(func(o op) error { return nil })
	assert.Equal(t, uint32(0xFFFFFFFF), l.Presence())

	l.SetPresence(0x1)
	assert.Equal(t, uint32(0x1), l.Presence())
}

func TestCleanRemovesOrphanedBuddies(t *testing.T) {
	l := New(func(o op) error { return nil })
	g := l.Add("Friends", KindGroup, 0)
	l.Add("alice", KindBuddy, g.GroupID)
	l.Remove(g) // leaves alice's GroupID dangling

	removed := l.Clean()
	assert.Equal(t, 1, removed)
	for _, it := range l.Items() {
		assert.NotEqual(t, "alice", it.Name)
	}
}

// Seed scenario 5: a buddy left directly in the master group (group id
// 0, e.g. one added by a noncompliant server) is migrated into a real
// group instead of being dropped, and no group is left empty afterward.
func TestCleanMigratesMasterGroupBuddyIntoUnknownGroup(t *testing.T) {
	l := New(func(o op) error { return nil })
	stray := l.Add("mallory", KindBuddy, 0)
	assert.Equal(t, uint16(0), stray.GroupID)

	removed := l.Clean()
	assert.Equal(t, 0, removed)
	assert.NotEqual(t, uint16(0), stray.GroupID)

	var group *Item
	for _, it := range l.Items() {
		if it.Kind == KindGroup {
			group = it
		}
	}
	require.NotNil(t, group)
	assert.Equal(t, "Unknown", group.Name)
	assert.Equal(t, group.GroupID, stray.GroupID)

	ids, ok := group.Data.([]uint16)
	require.True(t, ok)
	assert.Contains(t, ids, stray.ItemID)

	for _, it := range l.Items() {
		if it.Kind == KindGroup {
			ids, _ := it.Data.([]uint16)
			assert.NotEmpty(t, ids, "group %q left empty after Clean", it.Name)
		}
	}
}

// A master-group buddy migrated into an already-existing group does not
// get a second "Unknown" group created alongside it.
func TestCleanMigratesMasterGroupBuddyIntoExistingGroup(t *testing.T) {
	l := New(func(o op) error { return nil })
	g := l.Add("Friends", KindGroup, 0)
	stray := l.Add("mallory", KindBuddy, 0)

	removed := l.Clean()
	assert.Equal(t, 0, removed)
	assert.Equal(t, g.GroupID, stray.GroupID)

	groups := 0
	for _, it := range l.Items() {
		if it.Kind == KindGroup {
			groups++
		}
	}
	assert.Equal(t, 1, groups)
}

func TestRebuildGroupTracksMembership(t *testing.T) {
	l := New(func(o op) error { return nil })
	g := l.Add("Friends", KindGroup, 0)
	b1 := l.Add("alice", KindBuddy, g.GroupID)
	b2 := l.Add("bob", KindBuddy, g.GroupID)

	ids, ok := g.Data.([]uint16)
	require.True(t, ok)
	assert.ElementsMatch(t, []uint16{b1.ItemID, b2.ItemID}, ids)

	l.Remove(b1)
	ids, ok = g.Data.([]uint16)
	require.True(t, ok)
	assert.ElementsMatch(t, []uint16{b2.ItemID}, ids)
}
