package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeValidate(t *testing.T) {
	assert.NoError(t, ChannelScope("general").Validate())
	assert.NoError(t, ConversationScope("dm1").Validate())

	err := ChannelScope("  ").Validate()
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)

	assert.ErrorIs(t, Scope{Kind: "thread", ID: "x"}.Validate(), ErrValidation)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("conversation:abc")
	require.NoError(t, err)
	assert.Equal(t, ConversationScope("abc"), s)
	assert.Equal(t, "conversation_id", s.Field())

	_, err = ParseScope("abc")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSameScope(t *testing.T) {
	a, b := ChannelScope("1"), ChannelScope("1")
	c := ConversationScope("1")

	assert.True(t, SameScope(nil, nil))
	assert.True(t, SameScope(&a, &b))
	assert.False(t, SameScope(&a, &c))
	assert.False(t, SameScope(&a, nil))
}

func TestMessageScope(t *testing.T) {
	m := Message{ID: "1", ChannelID: "general"}
	assert.True(t, m.InScope(ChannelScope("general")))
	assert.False(t, m.InScope(ConversationScope("general")))

	_, ok := Message{ID: "2", ChannelID: "a", ConversationID: "b"}.Scope()
	assert.False(t, ok)
}

func TestNormalizeContent(t *testing.T) {
	got, ok := NormalizeContent("  hello \n")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)

	_, ok = NormalizeContent(" \t\n ")
	assert.False(t, ok)
}

func TestAuthorFor(t *testing.T) {
	name := "Ada"
	assert.Equal(t, Author{ID: "u1"}, AuthorFor("u1", nil))
	assert.Equal(t, "Ada", *AuthorFor("u1", &Profile{ID: "u1", DisplayName: &name}).DisplayName)
}

func TestProfileUpdateLimits(t *testing.T) {
	name := strings.Repeat("a", 51)
	err := ProfileUpdate{DisplayName: &name}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "display_name", verr.Field)

	ok := "Ada"
	assert.NoError(t, ProfileUpdate{DisplayName: &ok}.Validate())
	assert.True(t, ProfileUpdate{}.Empty())
}

func TestCreateConversationInput(t *testing.T) {
	assert.Equal(t, ConversationDirect, CreateConversationInput{ParticipantIDs: []string{"u2"}}.ResolvedType())
	assert.Equal(t, ConversationGroup, CreateConversationInput{ParticipantIDs: []string{"u2", "u3"}}.ResolvedType())
	assert.Equal(t, ConversationGroup, CreateConversationInput{ParticipantIDs: []string{"u2"}, Type: ConversationGroup}.ResolvedType())

	assert.ErrorIs(t, CreateConversationInput{}.Validate(), ErrValidation)
	assert.ErrorIs(t, CreateConversationInput{ParticipantIDs: []string{" "}}.Validate(), ErrValidation)
}

func TestCreateChannelInput(t *testing.T) {
	in := CreateChannelInput{Name: "  general  "}
	in.Normalize()
	assert.Equal(t, "general", in.Name)
	assert.NoError(t, in.Validate())

	bad := CreateChannelInput{Name: "x", Type: "stage"}
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	blank := ""
	assert.ErrorIs(t, UpdateChannelInput{Name: &blank}.Validate(), ErrValidation)
}

func TestCredentials(t *testing.T) {
	c := Credentials{Email: " Ada@Example.COM ", Password: "12345"}
	c.Normalize()
	assert.Equal(t, "ada@example.com", c.Email)
	assert.NoError(t, c.Validate())
	assert.ErrorIs(t, c.ValidateSignUp(), ErrValidation)

	assert.ErrorIs(t, Credentials{Email: "nope", Password: "secret"}.Validate(), ErrValidation)
}
