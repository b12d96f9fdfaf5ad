package messagesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	general = domain.ChannelScope("general")
	random  = domain.ChannelScope("random")
)

type harness struct {
	t        *testing.T
	messages *fakeMessages
	profiles *fakeProfiles
	feed     *fakeFeed
	sync     *Synchronizer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		messages: newFakeMessages(),
		profiles: &fakeProfiles{profiles: map[string]domain.Profile{}},
		feed:     &fakeFeed{},
	}
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	h.sync = New(h.messages, h.profiles, h.feed, fakeSession{userID: "me"}, opts...)
	t.Cleanup(func() { _ = h.sync.Close() })
	return h
}

func (h *harness) bind(scope domain.Scope) {
	h.t.Helper()
	require.NoError(h.t, h.sync.Rebind(context.Background(), &scope))
}

func (h *harness) waitFor(desc string, cond func(View) bool) View {
	h.t.Helper()
	var last View
	require.Eventually(h.t, func() bool {
		last = h.sync.Snapshot()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s; last view: state=%s ids=%v", desc, last.State, last.IDs())
	return last
}

func (h *harness) waitIDs(ids ...string) View {
	h.t.Helper()
	if ids == nil {
		ids = []string{}
	}
	return h.waitFor(fmt.Sprintf("ids %v", ids), func(v View) bool {
		return v.State == StateSynced && assert.ObjectsAreEqual(ids, v.IDs())
	})
}

func (h *harness) push(kind domain.ChangeKind, m domain.Message) {
	h.t.Helper()
	sub := h.feed.latest()
	require.NotNil(h.t, sub, "no live subscription")
	sub.events <- domain.ChangeEvent{Kind: kind, Message: m}
}

// barrier pushes a marker insert and waits for it, so every event pushed
// before it has been applied.
func (h *harness) barrier(scope domain.Scope) {
	h.t.Helper()
	marker := msgAt(fmt.Sprintf("barrier-%d", time.Now().UnixNano()), scope.ID, 999)
	if scope.Kind == domain.ScopeConversation {
		marker.ChannelID, marker.ConversationID = "", scope.ID
	}
	h.push(domain.ChangeInsert, marker)
	h.waitFor("barrier", func(v View) bool {
		for _, id := range v.IDs() {
			if id == marker.ID {
				return true
			}
		}
		return false
	})
	h.push(domain.ChangeDelete, domain.Message{ID: marker.ID})
	h.waitFor("barrier removal", func(v View) bool {
		for _, id := range v.IDs() {
			if id == marker.ID {
				return false
			}
		}
		return true
	})
}

func TestScenario_LoadInsertDuplicateDelete(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10), msgAt("2", "general", 20))

	h.bind(general)
	h.waitIDs("1", "2")

	h.push(domain.ChangeInsert, msgAt("3", "general", 30))
	h.waitIDs("1", "2", "3")

	h.push(domain.ChangeInsert, msgAt("3", "general", 30))
	h.barrier(general)
	assert.Equal(t, []string{"1", "2", "3"}, h.sync.Snapshot().IDs())

	h.push(domain.ChangeDelete, domain.Message{ID: "2"})
	h.waitIDs("1", "3")
}

func TestLoad_SortsAndResolvesAuthors(t *testing.T) {
	h := newHarness(t)
	name := "Ada"
	h.profiles.profiles["author-2"] = domain.Profile{ID: "author-2", DisplayName: &name}
	h.messages.set(general, msgAt("2", "general", 20), msgAt("1", "general", 10), msgAt("2", "general", 20))

	h.bind(general)
	v := h.waitIDs("1", "2")

	assert.Nil(t, v.Messages[0].Author.DisplayName, "missing profile falls back to bare id")
	assert.Equal(t, "author-1", v.Messages[0].Author.ID)
	require.NotNil(t, v.Messages[1].Author.DisplayName)
	assert.Equal(t, "Ada", *v.Messages[1].Author.DisplayName)
	assert.Equal(t, 1, h.profiles.lookups, "one batched lookup")
}

func TestLoad_FailedAuthorLookupIsNotCached(t *testing.T) {
	h := newHarness(t)
	h.profiles.fail(errors.New("profiles down"))
	h.messages.set(general, msgAt("1", "general", 10))

	h.bind(general)
	v := h.waitIDs("1")
	assert.Nil(t, v.Messages[0].Author.DisplayName)

	name := "Ada"
	h.profiles.fail(nil)
	h.profiles.put(domain.Profile{ID: "author-1", DisplayName: &name})
	later := msgAt("2", "general", 20)
	later.UserID = "author-1"
	h.push(domain.ChangeInsert, later)

	v = h.waitIDs("1", "2")
	require.NotNil(t, v.Messages[1].Author.DisplayName, "the author is looked up again")
	assert.Equal(t, "Ada", *v.Messages[1].Author.DisplayName)
}

func TestLoad_RespectsLimit(t *testing.T) {
	h := newHarness(t, WithLimit(2))
	h.messages.set(general, msgAt("1", "general", 1), msgAt("2", "general", 2), msgAt("3", "general", 3))

	h.bind(general)
	h.waitIDs("2", "3")
}

func TestSend_EmptyContentIsRejectedLocally(t *testing.T) {
	h := newHarness(t)
	h.bind(general)
	h.waitIDs()

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := h.sync.Send(context.Background(), content)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Zero(t, h.messages.count("insert"))
}

func TestSend_RequiresScope(t *testing.T) {
	h := newHarness(t)

	_, err := h.sync.Send(context.Background(), "hello")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scope", verr.Field)
	assert.Zero(t, h.messages.count("insert"))
}

func TestSend_RequiresUser(t *testing.T) {
	messages := newFakeMessages()
	s := New(messages, &fakeProfiles{}, &fakeFeed{}, fakeSession{}, WithLogger(slog.New(slog.DiscardHandler)))
	defer s.Close()
	require.NoError(t, s.Rebind(context.Background(), &general))

	_, err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = s.Edit(context.Background(), "m1", "hello")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	assert.ErrorIs(t, s.Delete(context.Background(), "m1"), domain.ErrUnauthenticated)
	assert.Zero(t, messages.count("insert")+messages.count("update")+messages.count("delete"))
}

func TestSend_ThenEchoLeavesOneEntry(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10))
	h.bind(general)
	h.waitIDs("1")

	sent, err := h.sync.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", sent.Content)
	assert.Equal(t, "me", sent.UserID)
	assert.Equal(t, []string{"1"}, h.sync.Snapshot().IDs(), "send does not splice locally")

	h.push(domain.ChangeInsert, *sent)
	h.push(domain.ChangeInsert, *sent)
	h.barrier(general)

	v := h.sync.Snapshot()
	assert.Equal(t, []string{"1", sent.ID}, v.IDs())
	assert.Equal(t, "hello", v.Messages[1].Content)
}

func TestSend_WriteRejected(t *testing.T) {
	h := newHarness(t)
	h.bind(general)
	h.waitIDs()

	h.messages.writeErr = &domain.WriteError{Op: "insert message", Cause: domain.CauseReferentialIntegrity}
	_, err := h.sync.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrWrite)
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)

	h.messages.writeErr = errors.New("socket closed")
	_, err = h.sync.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrWrite)
}

func TestUpdateAndDeleteOfUnknownIDAreNoOps(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10), msgAt("2", "general", 20))
	h.bind(general)
	before := h.waitIDs("1", "2")

	h.push(domain.ChangeUpdate, domain.Message{ID: "ghost", ChannelID: "general", Content: "boo"})
	h.push(domain.ChangeDelete, domain.Message{ID: "ghost"})
	h.barrier(general)

	after := h.sync.Snapshot()
	assert.Equal(t, before.IDs(), after.IDs())
	assert.Equal(t, before.Messages[0].Content, after.Messages[0].Content)
	assert.Equal(t, before.Messages[1].Content, after.Messages[1].Content)
}

func TestUpdateReplacesContent(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10))
	h.bind(general)
	h.waitIDs("1")

	edited := msgAt("1", "general", 10)
	edited.Content = "edited"
	edited.UpdatedAt = epoch.Add(time.Minute)
	h.push(domain.ChangeUpdate, edited)

	v := h.waitFor("edit", func(v View) bool { return len(v.Messages) == 1 && v.Messages[0].Content == "edited" })
	assert.Equal(t, edited.UpdatedAt, v.Messages[0].UpdatedAt)
	assert.Equal(t, "author-1", v.Messages[0].Author.ID, "author snapshot kept")
}

func TestStaleLoadDoesNotOverwriteNewScope(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("g1", "general", 1))
	h.messages.set(random, msgAt("r1", "random", 1))
	gate := h.messages.hold(general)

	h.bind(general)
	h.waitFor("general loading", func(v View) bool { return v.State == StateLoading && v.Live })

	loadErr := make(chan error, 1)
	go func() { loadErr <- h.sync.Load(context.Background()) }()
	require.Eventually(t, func() bool { return h.messages.count("list") >= 2 }, time.Second, 5*time.Millisecond)

	h.bind(random)
	h.waitIDs("r1")

	close(gate)
	select {
	case err := <-loadErr:
		assert.ErrorIs(t, err, domain.ErrStaleResult)
		var stale *domain.StaleResultError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, general, stale.Requested)
		require.NotNil(t, stale.Current)
		assert.Equal(t, random, *stale.Current)
	case <-time.After(2 * time.Second):
		t.Fatal("stale load never returned")
	}

	time.Sleep(20 * time.Millisecond)
	v := h.sync.Snapshot()
	assert.Equal(t, []string{"r1"}, v.IDs())
	assert.Equal(t, random, *v.Scope)
}

func TestNonAuthorEditAndDeleteAreRejected(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10))
	h.bind(general)
	before := h.waitIDs("1")

	h.messages.writeErr = &domain.WriteError{Op: "update message", Cause: domain.CausePermissionDenied}

	_, err := h.sync.Edit(context.Background(), "1", "mine now")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	err = h.sync.Delete(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	after := h.sync.Snapshot()
	assert.Equal(t, before.Seq, after.Seq, "rejected writes do not touch the view")
	assert.Equal(t, before.Messages, after.Messages)
}

func TestEditAndDeleteValidateLocally(t *testing.T) {
	h := newHarness(t)

	_, err := h.sync.Edit(context.Background(), "", "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.sync.Edit(context.Background(), "1", "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, h.sync.Delete(context.Background(), ""), domain.ErrValidation)
	assert.Zero(t, h.messages.count("update")+h.messages.count("delete"))
}

func TestLoadFailureEntersErrorAndKeepsApplyingLiveEvents(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10))
	h.messages.listErr = errors.New("backend down")

	h.bind(general)
	v := h.waitFor("error state", func(v View) bool { return v.State == StateError })
	assert.Empty(t, v.Messages)
	assert.ErrorIs(t, v.Err, domain.ErrFetch)
	assert.Contains(t, v.Error, "backend down")
	assert.True(t, v.Live, "subscription stays active")

	h.push(domain.ChangeInsert, msgAt("2", "general", 20))
	h.waitFor("live insert in error state", func(v View) bool {
		return v.State == StateError && assert.ObjectsAreEqual([]string{"2"}, v.IDs())
	})

	err := h.sync.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestLiveEventsDuringLoadAreMerged(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10), msgAt("2", "general", 20), msgAt("3", "general", 30))
	gate := h.messages.hold(general)

	h.bind(general)
	h.waitFor("loading", func(v View) bool { return v.State == StateLoading && v.Live })

	h.push(domain.ChangeInsert, msgAt("3", "general", 30))
	h.push(domain.ChangeInsert, msgAt("4", "general", 40))
	h.push(domain.ChangeDelete, domain.Message{ID: "2"})
	edited := msgAt("1", "general", 10)
	edited.Content = "edited early"
	edited.UpdatedAt = epoch.Add(time.Hour)
	h.push(domain.ChangeUpdate, edited)
	h.waitFor("live inserts applied", func(v View) bool { return len(v.Messages) == 2 })

	close(gate)
	v := h.waitIDs("1", "3", "4")
	assert.Equal(t, "edited early", v.Messages[0].Content)
}

func TestEditOfRowInsertedDuringLoadSurvivesLoad(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10), msgAt("2", "general", 20))
	gate := h.messages.hold(general)

	h.bind(general)
	h.waitFor("loading", func(v View) bool { return v.State == StateLoading && v.Live })

	h.push(domain.ChangeInsert, msgAt("2", "general", 20))
	edited := msgAt("2", "general", 20)
	edited.Content = "edited live"
	edited.UpdatedAt = epoch.Add(time.Hour)
	h.push(domain.ChangeUpdate, edited)
	h.waitFor("live edit applied", func(v View) bool {
		return len(v.Messages) == 1 && v.Messages[0].Content == "edited live"
	})

	close(gate)
	v := h.waitIDs("1", "2")
	assert.Equal(t, "edited live", v.Messages[1].Content)
}

func TestEditOfKnownRowDuringReloadSurvivesReload(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10))
	h.bind(general)
	h.waitIDs("1")

	gate := h.messages.hold(general)
	loaded := make(chan error, 1)
	go func() { loaded <- h.sync.Load(context.Background()) }()
	h.waitFor("reloading", func(v View) bool { return v.State == StateLoading })

	edited := msgAt("1", "general", 10)
	edited.Content = "edited live"
	edited.UpdatedAt = epoch.Add(time.Hour)
	h.push(domain.ChangeUpdate, edited)
	h.waitFor("live edit applied", func(v View) bool {
		return len(v.Messages) == 1 && v.Messages[0].Content == "edited live"
	})

	close(gate)
	require.NoError(t, <-loaded)
	v := h.waitIDs("1")
	assert.Equal(t, "edited live", v.Messages[0].Content)
}

func TestRebindReleasesPreviousSubscription(t *testing.T) {
	h := newHarness(t)

	h.bind(general)
	h.bind(random)
	h.bind(general)
	h.waitFor("synced", func(v View) bool { return v.State == StateSynced && *v.Scope == general })

	subs := h.feed.all()
	require.Len(t, subs, 3)
	assert.True(t, subs[0].isClosed())
	assert.True(t, subs[1].isClosed())
	assert.False(t, subs[2].isClosed())
	assert.Equal(t, 1, h.feed.open())

	// Events from a released subscription never reach the list.
	subs[1].events <- domain.ChangeEvent{Kind: domain.ChangeInsert, Message: msgAt("x", "random", 1)}
	h.barrier(general)
	assert.Empty(t, h.sync.Snapshot().IDs())
}

func TestRebindNilUnbinds(t *testing.T) {
	h := newHarness(t)
	h.messages.set(general, msgAt("1", "general", 10))
	h.bind(general)
	h.waitIDs("1")

	require.NoError(t, h.sync.Rebind(context.Background(), nil))
	require.NoError(t, h.sync.Rebind(context.Background(), nil))

	v := h.sync.Snapshot()
	assert.Equal(t, StateUnbound, v.State)
	assert.Nil(t, v.Scope)
	assert.Empty(t, v.Messages)
	assert.Zero(t, h.feed.open())
	assert.Equal(t, 1, h.messages.count("list"), "unbinding does not fetch")
}

func TestRebindRejectsInvalidScope(t *testing.T) {
	h := newHarness(t)
	err := h.sync.Rebind(context.Background(), &domain.Scope{Kind: domain.ScopeChannel})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, StateUnbound, h.sync.State())
}

func TestSubscribeFailure(t *testing.T) {
	h := newHarness(t)
	h.feed.err = errors.New("live queries disabled")

	err := h.sync.Rebind(context.Background(), &general)
	assert.ErrorIs(t, err, domain.ErrFetch)
	h.waitFor("error state", func(v View) bool { return v.State == StateError && !v.Live })
}

func TestFeedEndIsReported(t *testing.T) {
	h := newHarness(t)
	h.bind(general)
	h.waitFor("live", func(v View) bool { return v.State == StateSynced && v.Live })

	close(h.feed.latest().events)
	h.waitFor("not live", func(v View) bool { return !v.Live })
	assert.Equal(t, StateSynced, h.sync.State())
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.bind(general)
	h.waitIDs()

	require.NoError(t, h.sync.Close())
	require.NoError(t, h.sync.Close())

	assert.Equal(t, StateUnbound, h.sync.State())
	assert.Zero(t, h.feed.open())
	assert.ErrorIs(t, h.sync.Rebind(context.Background(), &general), ErrClosed)
	assert.ErrorIs(t, h.sync.Load(context.Background()), ErrClosed)
}

func TestPublishesViews(t *testing.T) {
	bus := pubsub.NewWatermillBridge(pubsub.WithBridgeLogger(slog.New(slog.DiscardHandler)))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views := make(chan View, 32)
	require.NoError(t, pubsub.On(ctx, bus, TopicViewChanged, func(_ context.Context, v View, msg pubsub.Message) error {
		if msg.Metadata[MetaSyncID] == "sync-under-test" {
			views <- v
		}
		return nil
	}))

	h := newHarness(t, WithPublisher(bus), WithID("sync-under-test"))
	h.messages.set(general, msgAt("1", "general", 10))
	h.bind(general)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			assert.Equal(t, "sync-under-test", v.SyncID)
			if v.State == StateSynced {
				assert.Equal(t, []string{"1"}, v.IDs())
				return
			}
		case <-deadline:
			t.Fatal("no synced view published")
		}
	}
}

// TestNoDuplicatesUnderInterleaving feeds random insert/update/delete
// sequences, racing a load, and checks IDs stay unique.
func TestNoDuplicatesUnderInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 25; round++ {
		h := newHarness(t)
		var seeded []domain.Message
		for i := 0; i < 5; i++ {
			seeded = append(seeded, msgAt(fmt.Sprintf("m%d", i), "general", i))
		}
		h.messages.set(general, seeded...)
		gate := h.messages.hold(general)

		h.bind(general)
		h.waitFor("live", func(v View) bool { return v.Live })

		for i := 0; i < 40; i++ {
			m := msgAt(fmt.Sprintf("m%d", rng.Intn(10)), "general", rng.Intn(10))
			kinds := []domain.ChangeKind{domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete}
			h.push(kinds[rng.Intn(len(kinds))], m)
			if i == 20 {
				close(gate)
			}
		}
		h.barrier(general)

		ids := h.sync.Snapshot().IDs()
		seen := map[string]bool{}
		for _, id := range ids {
			require.False(t, seen[id], "round %d: duplicate id %s in %v", round, id, ids)
			seen[id] = true
		}
		require.NoError(t, h.sync.Close())
	}
}
