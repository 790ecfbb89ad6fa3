package registration

import (
	"context"
	"errors"
	"testing"

	"smsrouter/pkg/handler"
	"smsrouter/pkg/store"

	"github.com/stretchr/testify/require"
)

type failingContacts struct{ err error }

func (f failingContacts) Register(context.Context, string, string, string) (store.Contact, bool, error) {
	return store.Contact{}, false, f.err
}

func mustStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestRegistrationFlow(t *testing.T) {
	s := mustStore(t)
	h, err := New(s, nil)
	require.NoError(t, err)

	replies, handled, err := handler.Test(h, "JOIN Alice")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, []string{"Thank you for registering, Alice!"}, replies)

	replies, handled, err = handler.Test(h, "reg: Alice Smith")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, []string{"Your name has been updated to Alice Smith."}, replies)

	contacts, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, "Alice Smith", contacts[0].Name)
}

func TestRegistrationHelp(t *testing.T) {
	h, err := New(mustStore(t), nil)
	require.NoError(t, err)

	for _, input := range []string{"register", " JOIN ", "reg;"} {
		replies, handled, err := handler.Test(h, input)
		require.NoError(t, err)
		require.Truef(t, handled, "input %q", input)
		require.Equalf(t, []string{helpText}, replies, "input %q", input)
	}
}

func TestRegistrationIgnoresOtherMessages(t *testing.T) {
	h, err := New(mustStore(t), nil)
	require.NoError(t, err)

	replies, handled, err := handler.Test(h, "I want to join")
	require.NoError(t, err)
	require.False(t, handled)
	require.Nil(t, replies)
}

func TestRegistrationStoreFailure(t *testing.T) {
	storeErr := errors.New("disk full")
	h, err := New(failingContacts{err: storeErr}, nil)
	require.NoError(t, err)

	replies, handled, err := handler.Test(h, "join Bob")
	require.ErrorIs(t, err, storeErr)
	require.True(t, handled)
	require.Equal(t, []string{failureText}, replies)
}

func TestRegistrationRequiresStore(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, ErrStoreRequired)
}
