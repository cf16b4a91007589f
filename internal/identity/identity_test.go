package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/models"
)

var roster = []models.Participant{
	{ID: "owner", Name: "Alice", Role: models.RoleOwner},
	{ID: "bob", Name: "Bob", Role: models.RoleEditor},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		pointer   *Pointer
		hasOwner  bool
		wantID    string
		wantStale bool
	}{
		{name: "no pointer, no owner token", wantID: ""},
		{name: "pointer to existing participant", pointer: &Pointer{ParticipantID: "bob"}, wantID: "bob"},
		{name: "pointer wins over owner token", pointer: &Pointer{ParticipantID: "bob"}, hasOwner: true, wantID: "bob"},
		{name: "owner token defaults to owner", hasOwner: true, wantID: "owner"},
		{name: "stale pointer is discarded", pointer: &Pointer{ParticipantID: "gone"}, wantStale: true},
		{name: "stale pointer falls back to owner", pointer: &Pointer{ParticipantID: "gone"}, hasOwner: true, wantID: "owner", wantStale: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.pointer, tt.hasOwner, roster)
			assert.Equal(t, tt.wantStale, res.Stale)
			if tt.wantID == "" {
				assert.Nil(t, res.Current)
				return
			}
			require.NotNil(t, res.Current)
			assert.Equal(t, tt.wantID, res.Current.ID)
		})
	}
}

func TestKeeper(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	k := NewKeeper(store)

	id1, err := k.DeviceID(ctx)
	require.NoError(t, err)
	id2, err := k.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.Equal(t, id1, id2, "device id must be stable")

	p, err := k.Pointer(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, k.SavePointer(ctx, "s1", Pointer{ParticipantID: "bob", Name: "Bob"}))
	p, err = k.Pointer(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Bob", p.Name)

	require.NoError(t, k.ClearPointer(ctx, "s1"))
	p, err = k.Pointer(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, store.Set(ctx, keyPointerPrefix+"s2", "{not json"))
	p, err = k.Pointer(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, p, "corrupt pointer reads as none")

	token, err := k.OwnerToken(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, token)
	require.NoError(t, k.SaveOwnerToken(ctx, "s1", "jwt"))
	token, err = k.OwnerToken(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
}
