package messagesync

import (
	"testing"
	"time"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/stretchr/testify/assert"
)

func withAuthor(m domain.Message) domain.MessageWithAuthor {
	return domain.MessageWithAuthor{Message: m, Author: domain.AuthorFor(m.UserID, nil)}
}

func ids(t *timeline) []string {
	return View{Messages: t.snapshot()}.IDs()
}

func TestTimeline_InsertDeduplicates(t *testing.T) {
	var tl timeline

	assert.True(t, tl.insert(withAuthor(msgAt("1", "c", 1))))
	assert.False(t, tl.insert(withAuthor(msgAt("1", "c", 1))))
	assert.True(t, tl.insert(withAuthor(msgAt("2", "c", 2))))

	assert.Equal(t, []string{"1", "2"}, ids(&tl))
}

func TestTimeline_UnknownIDsAreNoOps(t *testing.T) {
	var tl timeline
	tl.insert(withAuthor(msgAt("1", "c", 1)))

	assert.False(t, tl.update(domain.Message{ID: "x", Content: "nope"}))
	assert.False(t, tl.remove("x"))
	assert.Equal(t, []string{"1"}, ids(&tl))
	assert.Equal(t, "content 1", tl.entries[0].Content)
}

func TestTimeline_ApplyLoadSortsAndDeduplicates(t *testing.T) {
	var tl timeline
	tl.insert(withAuthor(msgAt("stale", "c", 0)))

	tl.applyLoad([]domain.MessageWithAuthor{
		withAuthor(msgAt("3", "c", 3)),
		withAuthor(msgAt("1", "c", 1)),
		withAuthor(msgAt("3", "c", 3)),
		withAuthor(msgAt("2", "c", 2)),
	})

	assert.Equal(t, []string{"1", "2", "3"}, ids(&tl), "load replaces the list when nothing was tracked")
}

func TestTimeline_ApplyLoadKeepsEqualTimestampsInLoadOrder(t *testing.T) {
	var tl timeline
	tl.applyLoad([]domain.MessageWithAuthor{
		withAuthor(msgAt("b", "c", 5)),
		withAuthor(msgAt("a", "c", 5)),
	})
	assert.Equal(t, []string{"b", "a"}, ids(&tl))
}

func TestTimeline_MergesChangesMadeDuringLoad(t *testing.T) {
	var tl timeline
	tl.beginLoad()

	tl.insert(withAuthor(msgAt("4", "c", 4)))
	tl.insert(withAuthor(msgAt("2", "c", 2)))
	tl.remove("1")

	newer := msgAt("3", "c", 3)
	newer.Content = "edited"
	newer.UpdatedAt = epoch.Add(time.Hour)
	tl.update(newer)

	older := msgAt("2", "c", 2)
	older.Content = "old edit"
	older.UpdatedAt = epoch
	tl.update(older)

	tl.applyLoad([]domain.MessageWithAuthor{
		withAuthor(msgAt("1", "c", 1)),
		withAuthor(msgAt("2", "c", 2)),
		withAuthor(msgAt("3", "c", 3)),
	})

	assert.Equal(t, []string{"2", "3", "4"}, ids(&tl))
	assert.Equal(t, "content 2", tl.entries[0].Content)
	assert.Equal(t, "edited", tl.entries[1].Content)
	assert.False(t, tl.loading)
}

func TestTimeline_EditOfKnownRowSurvivesLoad(t *testing.T) {
	var tl timeline
	tl.insert(withAuthor(msgAt("1", "c", 1)))
	tl.beginLoad()

	edited := msgAt("1", "c", 1)
	edited.Content = "edited"
	edited.UpdatedAt = epoch.Add(time.Minute)
	assert.True(t, tl.update(edited))

	tl.applyLoad([]domain.MessageWithAuthor{withAuthor(msgAt("1", "c", 1))})

	assert.Equal(t, []string{"1"}, ids(&tl))
	assert.Equal(t, "edited", tl.entries[0].Content)
	assert.Equal(t, edited.UpdatedAt, tl.entries[0].UpdatedAt)
}

func TestTimeline_EditOfRowInsertedDuringLoadSurvivesLoad(t *testing.T) {
	var tl timeline
	tl.beginLoad()

	tl.insert(withAuthor(msgAt("1", "c", 1)))
	edited := msgAt("1", "c", 1)
	edited.Content = "edited"
	edited.UpdatedAt = epoch.Add(time.Minute)
	tl.update(edited)

	tl.applyLoad([]domain.MessageWithAuthor{withAuthor(msgAt("1", "c", 1))})

	assert.Equal(t, []string{"1"}, ids(&tl))
	assert.Equal(t, "edited", tl.entries[0].Content)
}

func TestTimeline_NewestOfSeveralEditsDuringLoadWins(t *testing.T) {
	var tl timeline
	tl.insert(withAuthor(msgAt("1", "c", 1)))
	tl.beginLoad()

	second := msgAt("1", "c", 1)
	second.Content = "second"
	second.UpdatedAt = epoch.Add(2 * time.Minute)
	first := msgAt("1", "c", 1)
	first.Content = "first"
	first.UpdatedAt = epoch.Add(time.Minute)
	tl.update(second)
	tl.update(first)

	tl.applyLoad([]domain.MessageWithAuthor{withAuthor(msgAt("1", "c", 1))})

	assert.Equal(t, "second", tl.entries[0].Content)
}

func TestTimeline_OlderPendingUpdateLoses(t *testing.T) {
	var tl timeline
	tl.beginLoad()

	pending := msgAt("1", "c", 1)
	pending.Content = "early"
	tl.update(pending)

	loaded := msgAt("1", "c", 1)
	loaded.Content = "server copy"
	loaded.UpdatedAt = epoch.Add(time.Minute)
	tl.applyLoad([]domain.MessageWithAuthor{withAuthor(loaded)})

	assert.Equal(t, "server copy", tl.entries[0].Content)
}

func TestTimeline_ReinsertAfterDeleteDuringLoad(t *testing.T) {
	var tl timeline
	tl.beginLoad()

	tl.remove("1")
	tl.insert(withAuthor(msgAt("1", "c", 1)))
	tl.applyLoad([]domain.MessageWithAuthor{withAuthor(msgAt("1", "c", 1))})

	assert.Equal(t, []string{"1"}, ids(&tl))
}

func TestTimeline_FailLoadClears(t *testing.T) {
	var tl timeline
	tl.insert(withAuthor(msgAt("1", "c", 1)))
	tl.beginLoad()

	tl.failLoad()

	assert.Empty(t, tl.snapshot())
	assert.False(t, tl.loading)
	assert.True(t, tl.insert(withAuthor(msgAt("2", "c", 2))))
}
