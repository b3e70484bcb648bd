package services

import (
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestConversationService_Direct_Is_Deduplicated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	first, err := f.conversation.Create(f.ctx, alice, CreateConversationRequest{Type: "direct", ParticipantIDs: []string{bob.ID.String()}})
	req.NoError(err)
	second, err := f.conversation.Create(f.ctx, bob, CreateConversationRequest{Type: "direct", ParticipantIDs: []string{alice.ID.String()}})
	req.NoError(err)

	req.Equal(first.ID, second.ID)
	req.Equal(domain.Direct, first.Type)
	// A direct chat is named after the other participant
	req.Equal("bob", first.Name)
	req.Equal("alice", second.Name)
	req.Nil(first.Admin)
}

func TestConversationService_Create_Rejections(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	tests := []struct {
		name    string
		req     CreateConversationRequest
		wantErr error
	}{
		{"Unknown kind", CreateConversationRequest{Type: "channel"}, errors.ErrValidation},
		{"Malformed participant", CreateConversationRequest{Type: "group", Name: "x", ParticipantIDs: []string{"bob"}}, errors.ErrValidation},
		{"Unknown participant", CreateConversationRequest{Type: "group", Name: "x", ParticipantIDs: []string{domain.NewUserID().String()}}, errors.ErrUserNotFound},
		{"Direct with oneself", CreateConversationRequest{Type: "direct", ParticipantIDs: []string{alice.ID.String()}}, errors.ErrInvalidConversation},
		{"Direct with two others", CreateConversationRequest{Type: "direct", ParticipantIDs: []string{bob.ID.String(), f.user(t, "carol").ID.String()}}, errors.ErrInvalidConversation},
		{"Group without name", CreateConversationRequest{Type: "group", ParticipantIDs: []string{bob.ID.String()}}, errors.ErrInvalidConversation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.conversation.Create(f.ctx, alice, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConversationService_Group_Creator_Is_Admin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	dto, err := f.conversation.Create(f.ctx, alice, CreateConversationRequest{
		Type:           "group",
		Name:           "  friends ",
		ParticipantIDs: []string{bob.ID.String(), bob.ID.String(), alice.ID.String()},
		IsPrivate:      true,
	})

	req.NoError(err)
	req.Equal("friends", dto.Name)
	req.Equal(alice.ID.String(), dto.Admin.ID)
	req.ElementsMatch([]string{alice.ID.String(), bob.ID.String()}, lo.Map(dto.Participants, func(u event.UserDTO, _ int) string { return u.ID }))

	list, err := f.conversation.List(f.ctx, bob)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(dto.ID, list[0].ID)
}

func TestConversationService_Cannot_Leave_Direct(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	conv := f.direct(t, alice, bob)

	err := f.conversation.Leave(f.ctx, bob, conv.ID.String())

	req.ErrorIs(err, errors.ErrCannotLeaveDirect)
	stored, err := f.conversations.GetByID(f.ctx, conv.ID)
	req.NoError(err)
	req.Equal(conv.Participants, stored.Participants)
}

func TestConversationService_Admin_Leaving_Deletes_And_Tears_Down_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin, bob := f.user(t, "admin"), f.user(t, "bob")
	conv := f.group(t, admin, false, bob)
	bobSession, bobConn := f.connect(bob, "conn-b")
	_, err := f.chat.JoinConversation(f.ctx, bobSession, event.ConversationRequest{ConversationID: conv.ID.String()})
	req.NoError(err)

	// When the admin leaves
	req.NoError(f.conversation.Leave(f.ctx, admin, conv.ID.String()))

	// Then the conversation is gone, bob is unsubscribed and told why
	_, err = f.conversations.GetByID(f.ctx, conv.ID)
	req.ErrorIs(err, errors.ErrConversationNotFound)
	req.False(f.registry.IsSubscribed(bobSession.ConnID, conv.ID))
	deleted := bobConn.Received(event.ConversationDeleted)
	req.Len(deleted, 1)
	req.Equal(event.ConversationDeletedPayload{ConversationID: conv.ID.String()}, deleted[0].Data)

	// And the room refuses any further action
	_, err = f.chat.SendMessage(f.ctx, bobSession, event.SendMessageRequest{ConversationID: conv.ID.String(), Content: "hello?"})
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestConversationService_Member_Leaving(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin, bob := f.user(t, "admin"), f.user(t, "bob")
	conv := f.group(t, admin, false, bob)
	adminSession, adminConn := f.connect(admin, "conn-a")
	bobSession, _ := f.connect(bob, "conn-b")
	for _, s := range []Session{adminSession, bobSession} {
		_, err := f.chat.JoinConversation(f.ctx, s, event.ConversationRequest{ConversationID: conv.ID.String()})
		req.NoError(err)
	}

	req.NoError(f.conversation.Leave(f.ctx, bob, conv.ID.String()))

	stored, err := f.conversations.GetByID(f.ctx, conv.ID)
	req.NoError(err)
	req.False(stored.IsParticipant(bob.ID))
	req.False(f.registry.IsSubscribed(bobSession.ConnID, conv.ID))
	req.Len(adminConn.Received(event.UserLeftConversation), 1)

	req.ErrorIs(f.conversation.Leave(f.ctx, bob, conv.ID.String()), errors.ErrUnauthorized)
}

func TestConversationService_Add_Member(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin, bob, carol := f.user(t, "admin"), f.user(t, "bob"), f.user(t, "carol")
	conv := f.group(t, admin, true, bob)
	bobSession, bobConn := f.connect(bob, "conn-b")
	_, err := f.chat.JoinConversation(f.ctx, bobSession, event.ConversationRequest{ConversationID: conv.ID.String()})
	req.NoError(err)

	// Only the admin may add
	_, err = f.conversation.AddMember(f.ctx, bob, conv.ID.String(), AddMemberRequest{UserID: carol.ID.String()})
	req.ErrorIs(err, errors.ErrNotAdmin)

	dto, err := f.conversation.AddMember(f.ctx, admin, conv.ID.String(), AddMemberRequest{UserID: carol.ID.String()})
	req.NoError(err)
	req.Len(dto.Participants, 3)

	// The room sees the system message and the membership event
	added := bobConn.Received(event.MemberAddedToConversation)
	req.Len(added, 1)
	req.Equal(carol.ID.String(), added[0].Data.(event.MemberAddedPayload).AddedUser.ID)
	req.Equal(admin.ID.String(), added[0].Data.(event.MemberAddedPayload).AdminID)
	system := bobConn.Received(event.ReceiveMessage)
	req.Len(system, 1)
	message := system[0].Data.(event.MessageDTO)
	req.Equal(domain.SystemMessage, message.Type)
	req.Nil(message.Sender)
	req.Equal(domain.MemberAddedMetadata{AdminName: "admin", AddedUserName: "carol"}, message.Metadata)

	// The oracle sees the new member on the next call
	ok, err := NewMembershipOracle(f.conversations).IsParticipant(f.ctx, carol.ID, conv.ID)
	req.NoError(err)
	req.True(ok)

	_, err = f.conversation.AddMember(f.ctx, admin, conv.ID.String(), AddMemberRequest{UserID: carol.ID.String()})
	req.ErrorIs(err, errors.ErrAlreadyParticipant)
}

func TestConversationService_Direct_Membership_Is_Immutable(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	conv := f.direct(t, alice, bob)

	_, err := f.conversation.AddMember(f.ctx, alice, conv.ID.String(), AddMemberRequest{UserID: carol.ID.String()})
	req.ErrorIs(err, errors.ErrDirectImmutable)
	_, err = f.conversation.RemoveMember(f.ctx, alice, conv.ID.String(), bob.ID.String())
	req.ErrorIs(err, errors.ErrDirectImmutable)
}

func TestConversationService_Remove_Member_Rules(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin, bob, carol := f.user(t, "admin"), f.user(t, "bob"), f.user(t, "carol")
	conv := f.group(t, admin, true, bob)

	_, err := f.conversation.RemoveMember(f.ctx, admin, conv.ID.String(), admin.ID.String())
	req.ErrorIs(err, errors.ErrCannotKickSelf)
	_, err = f.conversation.RemoveMember(f.ctx, admin, conv.ID.String(), carol.ID.String())
	req.ErrorIs(err, errors.ErrNotParticipant)
	_, err = f.conversation.RemoveMember(f.ctx, bob, conv.ID.String(), admin.ID.String())
	req.ErrorIs(err, errors.ErrNotAdmin)

	dto, err := f.conversation.RemoveMember(f.ctx, admin, conv.ID.String(), bob.ID.String())
	req.NoError(err)
	req.Len(dto.Participants, 1)
}

func TestConversationService_Join_Public_Group(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin, bob := f.user(t, "admin"), f.user(t, "bob")
	public := f.group(t, admin, false)
	private := f.group(t, admin, true)

	_, err := f.conversation.JoinPublic(f.ctx, bob, private.ID.String())
	req.ErrorIs(err, errors.ErrPrivateConversation)
	_, err = f.conversation.Get(f.ctx, bob, private.ID.String())
	req.ErrorIs(err, errors.ErrUnauthorized)

	dto, err := f.conversation.JoinPublic(f.ctx, bob, public.ID.String())
	req.NoError(err)
	req.Len(dto.Participants, 2)
	req.NotNil(dto.LastMessage)
	req.Equal(domain.UserJoinedMetadata{UserID: bob.ID, Username: "bob"}, dto.LastMessage.Metadata)

	_, err = f.conversation.JoinPublic(f.ctx, bob, public.ID.String())
	req.ErrorIs(err, errors.ErrAlreadyParticipant)
}

func TestConversationService_Rename(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin := f.user(t, "admin")
	conv := f.group(t, admin, true)

	dto, err := f.conversation.Rename(f.ctx, admin, conv.ID.String(), RenameRequest{Name: "renamed"})

	req.NoError(err)
	req.Equal("renamed", dto.Name)
	history := f.history(t, conv.ID)
	req.Len(history, 1)
	body, ok := history[0].Body.(domain.SystemBody)
	req.True(ok)
	req.Equal(domain.GroupRenamedMetadata{AdminName: "admin", OldName: "team", NewName: "renamed"}, body.Metadata)

	_, err = f.conversation.Rename(f.ctx, admin, conv.ID.String(), RenameRequest{})
	req.ErrorIs(err, errors.ErrValidation)
}

func TestConversationService_History_Paging(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	conv := f.direct(t, alice, bob)
	session, _ := f.connect(alice, "conn-a")
	var sent []event.MessageDTO
	for _, text := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		dto, err := f.chat.SendMessage(f.ctx, session, event.SendMessageRequest{ConversationID: conv.ID.String(), Content: text})
		req.NoError(err)
		sent = append(sent, dto)
	}

	// The default page holds the newest three
	page, err := f.conversation.History(f.ctx, bob, conv.ID.String(), HistoryQuery{})
	req.NoError(err)
	req.Equal(sent[4:], page)

	// Older pages are read from the oldest message seen
	page, err = f.conversation.History(f.ctx, bob, conv.ID.String(), HistoryQuery{Limit: 2, Before: page[0].CreatedAt})
	req.NoError(err)
	req.Equal([]string{"3", "4"}, lo.Map(page, func(m event.MessageDTO, _ int) string { return m.Content }))

	// The limit is capped
	page, err = f.conversation.History(f.ctx, bob, conv.ID.String(), HistoryQuery{Limit: 1000})
	req.NoError(err)
	req.Len(page, 5)

	_, err = f.conversation.History(f.ctx, carol, conv.ID.String(), HistoryQuery{})
	req.ErrorIs(err, errors.ErrUnauthorized)
	_, err = f.conversation.History(f.ctx, bob, conv.ID.String(), HistoryQuery{Before: "yesterday"})
	req.ErrorIs(err, errors.ErrValidation)
}

func TestConversationService_History_Walks_Back_Through_Every_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	conv := f.direct(t, alice, bob)
	session, _ := f.connect(alice, "conn-a")

	// Given a burst of messages, many stored within the same millisecond
	var sent []string
	for i := 0; i < 40; i++ {
		dto, err := f.chat.SendMessage(f.ctx, session, event.SendMessageRequest{ConversationID: conv.ID.String(), Content: fmt.Sprint(i)})
		req.NoError(err)
		sent = append(sent, dto.ID)
	}

	// When bob pages one message at a time with the createdAt he was given
	var seen []string
	query := HistoryQuery{Limit: 1}
	for {
		page, err := f.conversation.History(f.ctx, bob, conv.ID.String(), query)
		req.NoError(err)
		if len(page) == 0 {
			break
		}
		seen = append([]string{page[0].ID}, seen...)
		query.Before = page[0].CreatedAt
	}

	// Then no message is skipped
	req.Equal(sent, seen)
}
