package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/pkg/api"
	"github.com/mmynk/receiptsplit/pkg/api/apiconnect"
)

// fakeService implements only the procedures a test exercises; calling any
// other one panics on the nil embedded interface.
type fakeService struct {
	apiconnect.SessionServiceHandler

	lastHeaders map[string]string
	addItemErr  error
	changes     *api.GetChangesResponse
	lastPatch   *api.UpdateItemRequest
}

func (f *fakeService) AddItem(_ context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.Ack], error) {
	f.lastHeaders = map[string]string{
		api.HeaderAuth:     req.Header().Get(api.HeaderAuth),
		api.HeaderDeviceID: req.Header().Get(api.HeaderDeviceID),
	}
	if f.addItemErr != nil {
		return nil, f.addItemErr
	}
	return connect.NewResponse(&api.Ack{SchemaVersion: api.SchemaVersion, ID: "srv-" + req.Msg.Item.Name, LastUpdated: "r2"}), nil
}

func (f *fakeService) UpdateItem(_ context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.Ack], error) {
	f.lastPatch = req.Msg
	return connect.NewResponse(&api.Ack{SchemaVersion: api.SchemaVersion, LastUpdated: "r3"}), nil
}

func (f *fakeService) GetChanges(_ context.Context, _ *connect.Request[api.GetChangesRequest]) (*connect.Response[api.GetChangesResponse], error) {
	return connect.NewResponse(f.changes), nil
}

func (f *fakeService) Join(_ context.Context, _ *connect.Request[api.JoinRequest]) (*connect.Response[api.ParticipantResponse], error) {
	return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("participant limit reached"))
}

func setupClient(t *testing.T, svc *fakeService) *Client {
	t.Helper()
	mux := http.NewServeMux()
	path, handler := apiconnect.NewSessionServiceHandler(svc)
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return New(server.Client(), server.URL)
}

func TestClientAddItem(t *testing.T) {
	svc := &fakeService{}
	c := setupClient(t, svc)

	res := c.AddItem(context.Background(), Auth{OwnerToken: "tok", DeviceID: "dev-1"}, "s1",
		models.Item{Name: "Pizza", Price: 10000, Quantity: 1})

	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "srv-Pizza", res.ID)
	assert.Equal(t, "r2", res.LastUpdated)
	assert.Equal(t, "Bearer tok", svc.lastHeaders[api.HeaderAuth])
	assert.Equal(t, "dev-1", svc.lastHeaders[api.HeaderDeviceID])
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		code connect.Code
		want Outcome
	}{
		{name: "unauthenticated", code: connect.CodeUnauthenticated, want: Unauthorized},
		{name: "permission denied", code: connect.CodePermissionDenied, want: Unauthorized},
		{name: "not found", code: connect.CodeNotFound, want: NotFound},
		{name: "quota", code: connect.CodeResourceExhausted, want: LimitReached},
		{name: "validation", code: connect.CodeInvalidArgument, want: Invalid},
		{name: "finalized", code: connect.CodeFailedPrecondition, want: Conflict},
		{name: "internal", code: connect.CodeInternal, want: Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{addItemErr: connect.NewError(tt.code, errors.New("boom"))}
			c := setupClient(t, svc)

			res := c.AddItem(context.Background(), Auth{}, "s1", models.Item{Name: "x", Price: 1, Quantity: 1})
			assert.Equal(t, tt.want, res.Outcome)
			assert.Error(t, res.Err)
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	c := New(http.DefaultClient, "http://127.0.0.1:1")
	res := c.Finalize(context.Background(), Auth{}, "s1")
	assert.Equal(t, Failed, res.Outcome)

	_, err := c.GetSession(context.Background(), Auth{}, "s1")
	require.Error(t, err)
	assert.Equal(t, Failed, Classify(err))
}

func TestClientModeOnlyPatch(t *testing.T) {
	svc := &fakeService{}
	c := setupClient(t, svc)

	mode := models.ModeGrouped
	res := c.UpdateItem(context.Background(), Auth{}, "s1", "it1", models.ItemPatch{Mode: &mode})
	require.True(t, res.OK())
	require.NotNil(t, svc.lastPatch)
	require.NotNil(t, svc.lastPatch.Mode)
	assert.Equal(t, "grouped", *svc.lastPatch.Mode)
	assert.Nil(t, svc.lastPatch.Name)
	assert.Nil(t, svc.lastPatch.Price)
}

func TestClientGetChanges(t *testing.T) {
	svc := &fakeService{changes: &api.GetChangesResponse{
		SchemaVersion: api.SchemaVersion,
		HasChanges:    true,
		LastUpdated:   "r7",
		State: &api.MutableState{
			Status:   "finalized",
			HostStep: 3,
			Items:    []api.Item{{ID: "it1", Name: "Pizza", Price: 10000, Quantity: 1, Mode: "individual"}},
		},
	}}
	c := setupClient(t, svc)

	changes, err := c.GetChanges(context.Background(), Auth{}, "s1", "r6")
	require.NoError(t, err)
	assert.True(t, changes.HasChanges)
	assert.Equal(t, "r7", changes.LastUpdated)
	assert.Equal(t, models.StatusFinalized, changes.State.Status)
	require.Len(t, changes.State.Items, 1)
	assert.Equal(t, models.ModeIndividual, changes.State.Items[0].Mode)

	svc.changes = &api.GetChangesResponse{SchemaVersion: 99}
	_, err = c.GetChanges(context.Background(), Auth{}, "s1", "r7")
	require.Error(t, err)
	assert.Equal(t, Failed, Classify(err))
}

func TestClientJoinLimitReached(t *testing.T) {
	c := setupClient(t, &fakeService{})

	res := c.Join(context.Background(), Auth{DeviceID: "dev"}, "s1", "Dana")
	assert.True(t, res.LimitReached())
	assert.False(t, res.OK())
}
