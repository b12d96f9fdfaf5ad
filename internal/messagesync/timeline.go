package messagesync

import (
	"sort"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/samber/lo"
)

// timeline is the ordered message list of one bound scope. While a load is
// in flight it also remembers what the live feed changed, so that the load
// result can be merged instead of overwriting newer state.
type timeline struct {
	entries []domain.MessageWithAuthor

	loading bool
	arrived []string                  // inserted during the load, arrival order
	deleted map[string]bool           // deleted during the load
	updated map[string]domain.Message // newest update per ID during the load
}

func (t *timeline) indexOf(id string) int {
	for i := range t.entries {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// reset drops everything, including load tracking.
func (t *timeline) reset() {
	*t = timeline{}
}

// beginLoad starts tracking live changes for a load in flight.
func (t *timeline) beginLoad() {
	t.loading = true
	t.arrived = nil
	t.deleted = make(map[string]bool)
	t.updated = make(map[string]domain.Message)
}

// insert appends m unless its ID is already present.
func (t *timeline) insert(m domain.MessageWithAuthor) bool {
	if t.indexOf(m.ID) >= 0 {
		return false
	}
	t.entries = append(t.entries, m)
	if t.loading {
		t.arrived = append(t.arrived, m.ID)
		delete(t.deleted, m.ID)
	}
	return true
}

// update replaces the mutable fields of the matching entry. Unknown IDs are
// dropped. While a load is in flight every update is also kept, so the
// load result cannot roll it back.
func (t *timeline) update(m domain.Message) bool {
	if t.loading {
		if prev, ok := t.updated[m.ID]; !ok || !m.UpdatedAt.Before(prev.UpdatedAt) {
			t.updated[m.ID] = m
		}
	}
	i := t.indexOf(m.ID)
	if i < 0 {
		return false
	}
	t.entries[i].Content = m.Content
	t.entries[i].UpdatedAt = m.UpdatedAt
	return true
}

// remove deletes the matching entry. Unknown IDs are a no-op apart from
// load tracking.
func (t *timeline) remove(id string) bool {
	if t.loading {
		t.deleted[id] = true
		delete(t.updated, id)
	}
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// applyLoad replaces the list with loaded, sorted by creation time, then
// replays what the live feed did while the load was in flight.
func (t *timeline) applyLoad(loaded []domain.MessageWithAuthor) {
	rows := lo.UniqBy(loaded, func(m domain.MessageWithAuthor) string { return m.ID })
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })

	if t.loading {
		rows = lo.Filter(rows, func(m domain.MessageWithAuthor, _ int) bool { return !t.deleted[m.ID] })
		for i := range rows {
			if u, ok := t.updated[rows[i].ID]; ok && !u.UpdatedAt.Before(rows[i].UpdatedAt) {
				rows[i].Content = u.Content
				rows[i].UpdatedAt = u.UpdatedAt
			}
		}

		known := lo.Associate(rows, func(m domain.MessageWithAuthor) (string, bool) { return m.ID, true })
		for _, id := range t.arrived {
			if known[id] {
				continue
			}
			if i := t.indexOf(id); i >= 0 {
				rows = append(rows, t.entries[i])
				known[id] = true
			}
		}
	}

	t.entries = rows
	t.loading = false
	t.arrived = nil
	t.deleted = nil
	t.updated = nil
}

// failLoad clears the list after a failed load. Live events keep applying.
func (t *timeline) failLoad() {
	t.reset()
}

// snapshot copies the entries for a View.
func (t *timeline) snapshot() []domain.MessageWithAuthor {
	out := make([]domain.MessageWithAuthor, len(t.entries))
	copy(out, t.entries)
	return out
}
