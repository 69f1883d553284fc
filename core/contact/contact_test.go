package contact_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/user"
	dummydb "github.com/skillbarter/backend/storage/database/dummy"
	"github.com/skillbarter/backend/tests"
)

func TestConversationID(t *testing.T) {
	assert.Equal(t, "a1_b2", contact.ConversationID("a1", "b2"))
	assert.Equal(t, "a1_b2", contact.ConversationID("b2", "a1"))
}

func TestContact_accessors(t *testing.T) {
	c := contact.Contact{UserAID: "a", UserBID: "b", UnreadA: 3, UnreadB: 1}
	assert.Equal(t, "b", c.Other("a"))
	assert.Equal(t, "a", c.Other("b"))
	assert.Equal(t, 3, c.UnreadFor("a"))
	assert.Equal(t, 1, c.UnreadFor("b"))
}

func TestService_Ensure(t *testing.T) {
	ctx := context.Background()
	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	svc := contact.NewService(dummydb.NewContactRepository(db), user.NewService(usrRepo, core.NewTestConfig(), nil))

	ada := testutil.CreateUser(t, usrRepo, "Ada", "Lovelace", "ada@test.cd", "", nil, nil)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "Marley", "bob@test.cd", "", nil, nil)
	id := contact.ConversationID(ada.ID, bob.ID)

	res, err := svc.Ensure(ctx, ada.ID, bob.ID, "req1")
	require.NoError(t, err)
	assert.Equal(t, contact.Result{ConversationID: id, Created: true}, res)

	// reversed participants hit the same conversation
	res, err = svc.Ensure(ctx, bob.ID, ada.ID, "req2")
	require.NoError(t, err)
	assert.Equal(t, contact.Result{ConversationID: id}, res)

	for _, tt := range []struct {
		usr   user.User
		other user.User
	}{{ada, bob}, {bob, ada}} {
		views, err := svc.Query(ctx, tt.usr.ID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, id, views[0].ConversationID)
		assert.Equal(t, "req1", views[0].ExchangeRequestID)
		assert.Equal(t, tt.other.ID, views[0].Contact.ID)
	}

	views, err := svc.Query(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, views)
}
