package community

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/nfrund/chorus/internal/domain"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeSession struct{ userID string }

func (f fakeSession) CurrentUserID(context.Context) (string, error) {
	if f.userID == "" {
		return "", domain.ErrUnauthenticated
	}
	return f.userID, nil
}

// fakeStore implements every repository over shared in-memory tables.
type fakeStore struct {
	mu            sync.Mutex
	servers       []domain.Server
	members       []domain.ServerMember
	channels      []domain.Channel
	conversations []domain.Conversation
	participants  []domain.Participant
	messages      []domain.Message
	profiles      map[string]domain.Profile
	reads         map[string]int
	failWrite     error
	nextID        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]domain.Profile{}, reads: map[string]int{}}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeStore) readCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[name]
}

type fakeServers struct{ *fakeStore }

func (f fakeServers) ListPublic(_ context.Context, limit int) ([]domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Server
	for i := len(f.servers) - 1; i >= 0 && len(out) < limit; i-- {
		if f.servers[i].IsPublic {
			out = append(out, f.servers[i])
		}
	}
	return out, nil
}

func (f fakeServers) FindByID(_ context.Context, id string) (*domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f fakeServers) Create(_ context.Context, ownerID string, in domain.CreateServerInput) (*domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	s := domain.Server{ID: f.id("server"), Name: in.Name, Description: in.Description, OwnerID: ownerID, IsPublic: in.IsPublic == nil || *in.IsPublic, CreatedAt: epoch}
	f.servers = append(f.servers, s)
	return &s, nil
}

func (f fakeServers) MembershipsOf(_ context.Context, userID string) ([]domain.ServerMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServerMember
	for _, m := range f.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f fakeServers) MemberCounts(_ context.Context, ids []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, m := range f.members {
		counts[m.ServerID]++
	}
	return counts, nil
}

func (f fakeServers) ServersOf(_ context.Context, userID string) ([]domain.UserServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["servers_of"]++
	var out []domain.UserServer
	for i := len(f.members) - 1; i >= 0; i-- {
		m := f.members[i]
		if m.UserID != userID {
			continue
		}
		for _, s := range f.servers {
			if s.ID == m.ServerID {
				out = append(out, domain.UserServer{Server: s, Member: m})
			}
		}
	}
	return out, nil
}

func (f fakeServers) AddMember(_ context.Context, serverID, userID string, role domain.MemberRole) (*domain.ServerMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.ServerID == serverID && m.UserID == userID {
			return nil, &domain.WriteError{Op: "add member", Cause: domain.CauseUnknown}
		}
	}
	m := domain.ServerMember{ID: f.id("member"), ServerID: serverID, UserID: userID, Role: role, JoinedAt: epoch}
	f.members = append(f.members, m)
	return &m, nil
}

func (f fakeServers) RemoveMember(_ context.Context, serverID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.members {
		if m.ServerID == serverID && m.UserID == userID {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return nil
		}
	}
	return &domain.WriteError{Op: "remove member", Cause: domain.CauseNotFound}
}

type fakeChannels struct{ *fakeStore }

func (f fakeChannels) ListByServer(_ context.Context, serverID string) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["channels"]++
	var out []domain.Channel
	for _, c := range f.channels {
		if c.ServerID == serverID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f fakeChannels) MaxPosition(_ context.Context, serverID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	highest, found := 0, false
	for _, c := range f.channels {
		if c.ServerID == serverID && (!found || c.Position > highest) {
			highest, found = c.Position, true
		}
	}
	return highest, found, nil
}

func (f fakeChannels) Create(_ context.Context, serverID string, in domain.CreateChannelInput) (*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := domain.Channel{ID: f.id("channel"), ServerID: serverID, Name: in.Name, Description: in.Description, Type: in.Type, Position: *in.Position}
	f.channels = append(f.channels, c)
	return &c, nil
}

func (f fakeChannels) Update(_ context.Context, id string, in domain.UpdateChannelInput) (*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		if f.channels[i].ID == id {
			if in.Name != nil {
				f.channels[i].Name = *in.Name
			}
			if in.Position != nil {
				f.channels[i].Position = *in.Position
			}
			c := f.channels[i]
			return &c, nil
		}
	}
	return nil, &domain.WriteError{Op: "update channel", Cause: domain.CauseNotFound}
}

func (f fakeChannels) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.channels {
		if c.ID == id {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			return nil
		}
	}
	return &domain.WriteError{Op: "delete channel", Cause: domain.CauseNotFound}
}

type fakeConversations struct{ *fakeStore }

func (f fakeConversations) ConversationIDsOf(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["conversations"]++
	var out []string
	for _, p := range f.participants {
		if p.UserID == userID {
			out = append(out, p.ConversationID)
		}
	}
	return out, nil
}

func (f fakeConversations) FindByIDs(_ context.Context, ids []string) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Conversation
	for i := len(f.conversations) - 1; i >= 0; i-- {
		for _, id := range ids {
			if f.conversations[i].ID == id {
				out = append(out, f.conversations[i])
			}
		}
	}
	return out, nil
}

func (f fakeConversations) ParticipantsOf(_ context.Context, ids []string) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Participant
	for _, p := range f.participants {
		for _, id := range ids {
			if p.ConversationID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f fakeConversations) FindDirectWith(_ context.Context, userID, peerID string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.Type != domain.ConversationDirect {
			continue
		}
		var me, peer bool
		for _, p := range f.participants {
			if p.ConversationID == c.ID {
				me = me || p.UserID == userID
				peer = peer || p.UserID == peerID
			}
		}
		if me && peer {
			return &c, nil
		}
	}
	return nil, nil
}

func (f fakeConversations) Create(_ context.Context, name *string, kind domain.ConversationType, participantIDs []string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := domain.Conversation{ID: f.id("conversation"), Name: name, Type: kind}
	f.conversations = append(f.conversations, c)
	for _, id := range participantIDs {
		f.participants = append(f.participants, domain.Participant{ID: f.id("participant"), ConversationID: c.ID, UserID: id})
	}
	return &c, nil
}

func (f fakeConversations) Rename(_ context.Context, id string, name *string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.conversations {
		if f.conversations[i].ID == id {
			f.conversations[i].Name = name
			c := f.conversations[i]
			return &c, nil
		}
	}
	return nil, &domain.WriteError{Op: "rename conversation", Cause: domain.CauseNotFound}
}

func (f fakeConversations) RemoveParticipant(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			f.participants = append(f.participants[:i], f.participants[i+1:]...)
			return nil
		}
	}
	return &domain.WriteError{Op: "leave conversation", Cause: domain.CauseNotFound}
}

type fakeMessages struct{ *fakeStore }

func (f fakeMessages) ListRecent(context.Context, domain.Scope, int) ([]domain.Message, error) {
	return nil, nil
}

func (f fakeMessages) Insert(context.Context, domain.NewMessage) (*domain.Message, error) {
	return nil, nil
}

func (f fakeMessages) UpdateContent(context.Context, string, string, string) (*domain.Message, error) {
	return nil, nil
}

func (f fakeMessages) Delete(context.Context, string, string) error { return nil }

func (f fakeMessages) LatestByConversations(_ context.Context, ids []string) (map[string]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]domain.Message{}
	for _, m := range f.messages {
		if prev, ok := out[m.ConversationID]; !ok || m.CreatedAt.After(prev.CreatedAt) {
			out[m.ConversationID] = m
		}
	}
	return out, nil
}

type fakeProfiles struct{ *fakeStore }

func (f fakeProfiles) FindByIDs(_ context.Context, ids []string) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeProfiles) FindByID(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f fakeProfiles) Create(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := domain.Profile{ID: id}
	f.profiles[id] = p
	return &p, nil
}

func (f fakeProfiles) Update(_ context.Context, id string, patch domain.ProfileUpdate) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	p := f.profiles[id]
	apply := func(dst **string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			*dst = nil
			return
		}
		s := *v
		*dst = &s
	}
	apply(&p.DisplayName, patch.DisplayName)
	apply(&p.AvatarURL, patch.AvatarURL)
	apply(&p.StatusMessage, patch.StatusMessage)
	f.profiles[id] = p
	return &p, nil
}

func (f fakeProfiles) Search(context.Context, domain.ProfileSearch) ([]domain.Profile, error) {
	return nil, nil
}

// fakeAvatars records uploads and removals by URL.
type fakeAvatars struct {
	mu      sync.Mutex
	n       int
	stored  map[string]bool
	removed []string
	err     error
}

func (f *fakeAvatars) Upload(_ context.Context, userID, _, _ string, _ int64, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.n++
	url := fmt.Sprintf("/avatars/%s-%d.png", userID, f.n)
	if f.stored == nil {
		f.stored = map[string]bool{}
	}
	f.stored[url] = true
	return url, nil
}

func (f *fakeAvatars) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, url)
	f.removed = append(f.removed, url)
	return nil
}
