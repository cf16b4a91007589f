// Package client is a stateless, typed wrapper over the SessionService.
//
// Every write has one method. Methods shape the request, attach credentials
// and translate the server's answer into a Result; they hold no state and
// never retry.
package client

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/pkg/api"
	"github.com/mmynk/receiptsplit/pkg/api/apiconnect"
)

// Auth carries the caller's credentials for one call.
type Auth struct {
	// OwnerToken is the owner credential for the session, if the device holds one.
	OwnerToken string
	// DeviceID identifies the calling device.
	DeviceID string
}

func (a Auth) apply(h http.Header) {
	if a.OwnerToken != "" {
		h.Set(api.HeaderAuth, "Bearer "+a.OwnerToken)
	}
	if a.DeviceID != "" {
		h.Set(api.HeaderDeviceID, a.DeviceID)
	}
}

// Client talks to one SessionService.
type Client struct {
	svc apiconnect.SessionServiceClient
}

// New creates a client for the server at baseURL.
func New(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{svc: apiconnect.NewSessionServiceClient(httpClient, baseURL, opts...)}
}

// NewFromService wraps an existing service client.
func NewFromService(svc apiconnect.SessionServiceClient) *Client {
	return &Client{svc: svc}
}

func request[T any](msg *T, auth Auth) *connect.Request[T] {
	req := connect.NewRequest(msg)
	auth.apply(req.Header())
	return req
}

func checkVersion(v int) error {
	if v != api.SchemaVersion {
		return fmt.Errorf("unsupported schema version %d", v)
	}
	return nil
}

func ack(resp *connect.Response[api.Ack], err error) Result {
	if err != nil {
		return Failure(err)
	}
	if err := checkVersion(resp.Msg.SchemaVersion); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	return Result{Outcome: OK, ID: resp.Msg.ID, LastUpdated: resp.Msg.LastUpdated}
}

// Created is the result of CreateSession.
type Created struct {
	Session    *models.Session
	OwnerToken string
	OwnerID    string
}

// NewSession describes a session to create.
type NewSession struct {
	OwnerName    string
	Items        []models.Item
	Charges      []models.Charge
	Subtotal     float64
	Total        float64
	NumberFormat string
}

// CreateSession creates a session owned by the caller.
func (c *Client) CreateSession(ctx context.Context, auth Auth, in NewSession) (*Created, error) {
	msg := &api.CreateSessionRequest{
		OwnerName:    in.OwnerName,
		Charges:      api.FromCharges(in.Charges),
		Subtotal:     in.Subtotal,
		Total:        in.Total,
		NumberFormat: in.NumberFormat,
	}
	for _, it := range in.Items {
		msg.Items = append(msg.Items, api.FromItem(it))
	}
	resp, err := c.svc.CreateSession(ctx, request(msg, auth))
	if err != nil {
		return nil, readError(err)
	}
	if err := checkVersion(resp.Msg.SchemaVersion); err != nil {
		return nil, &Error{Outcome: Failed, Err: err}
	}
	return &Created{
		Session:    api.ToSession(resp.Msg.Session),
		OwnerToken: resp.Msg.OwnerToken,
		OwnerID:    resp.Msg.OwnerID,
	}, nil
}

// GetSession fetches a full snapshot.
func (c *Client) GetSession(ctx context.Context, auth Auth, sessionID string) (*models.Session, error) {
	resp, err := c.svc.GetSession(ctx, request(&api.GetSessionRequest{SessionID: sessionID}, auth))
	if err != nil {
		return nil, readError(err)
	}
	if err := checkVersion(resp.Msg.SchemaVersion); err != nil {
		return nil, &Error{Outcome: Failed, Err: err}
	}
	return api.ToSession(resp.Msg.Session), nil
}

// Changes is the answer of the diff endpoint.
type Changes struct {
	HasChanges  bool
	LastUpdated string
	// State is only meaningful when HasChanges is set.
	State models.MutableState
}

// GetChanges asks whether the session moved past since.
func (c *Client) GetChanges(ctx context.Context, auth Auth, sessionID, since string) (*Changes, error) {
	resp, err := c.svc.GetChanges(ctx, request(&api.GetChangesRequest{SessionID: sessionID, Since: since}, auth))
	if err != nil {
		return nil, readError(err)
	}
	if err := checkVersion(resp.Msg.SchemaVersion); err != nil {
		return nil, &Error{Outcome: Failed, Err: err}
	}
	out := &Changes{HasChanges: resp.Msg.HasChanges, LastUpdated: resp.Msg.LastUpdated}
	if resp.Msg.HasChanges {
		if resp.Msg.State == nil {
			return nil, &Error{Outcome: Failed, Err: fmt.Errorf("changes reported without state")}
		}
		out.State = api.ToMutable(*resp.Msg.State)
	}
	return out, nil
}

// AssignInput sets one participant's claim on an assignment key.
type AssignInput struct {
	Key           string
	ParticipantID string
	Quantity      float64
	Assigned      bool
	// UpdatedBy is a display name recorded for audit.
	UpdatedBy string
}

// Assign records or clears a claim.
func (c *Client) Assign(ctx context.Context, auth Auth, sessionID string, in AssignInput) Result {
	return ack(c.svc.Assign(ctx, request(&api.AssignRequest{
		SessionID:     sessionID,
		Key:           in.Key,
		ParticipantID: in.ParticipantID,
		Quantity:      in.Quantity,
		Assigned:      in.Assigned,
		UpdatedBy:     in.UpdatedBy,
	}, auth)))
}

// AddItem appends an item. The Result carries the server-assigned id.
func (c *Client) AddItem(ctx context.Context, auth Auth, sessionID string, item models.Item) Result {
	return ack(c.svc.AddItem(ctx, request(&api.AddItemRequest{SessionID: sessionID, Item: api.FromItem(item)}, auth)))
}

// UpdateItem patches an item. A mode-only patch needs no owner token.
func (c *Client) UpdateItem(ctx context.Context, auth Auth, sessionID, itemID string, patch models.ItemPatch) Result {
	msg := &api.UpdateItemRequest{
		SessionID: sessionID,
		ItemID:    itemID,
		Name:      patch.Name,
		Price:     patch.Price,
		Quantity:  patch.Quantity,
	}
	if patch.Mode != nil {
		mode := string(*patch.Mode)
		msg.Mode = &mode
	}
	return ack(c.svc.UpdateItem(ctx, request(msg, auth)))
}

// DeleteItem removes an item and its claims.
func (c *Client) DeleteItem(ctx context.Context, auth Auth, sessionID, itemID string) Result {
	return ack(c.svc.DeleteItem(ctx, request(&api.DeleteItemRequest{SessionID: sessionID, ItemID: itemID}, auth)))
}

// UpdateCharges replaces the charge list.
func (c *Client) UpdateCharges(ctx context.Context, auth Auth, sessionID string, charges []models.Charge) Result {
	return ack(c.svc.UpdateCharges(ctx, request(&api.UpdateChargesRequest{SessionID: sessionID, Charges: api.FromCharges(charges)}, auth)))
}

// UpdateTotals sets the printed subtotal and total used for verification.
func (c *Client) UpdateTotals(ctx context.Context, auth Auth, sessionID string, subtotal, total float64) Result {
	return ack(c.svc.UpdateTotals(ctx, request(&api.UpdateTotalsRequest{SessionID: sessionID, Subtotal: subtotal, Total: total}, auth)))
}

// Finalize locks the session against non-owner assignment changes.
func (c *Client) Finalize(ctx context.Context, auth Auth, sessionID string) Result {
	return ack(c.svc.Finalize(ctx, request(&api.StatusRequest{SessionID: sessionID}, auth)))
}

// Reopen returns a finalized session to assigning.
func (c *Client) Reopen(ctx context.Context, auth Auth, sessionID string) Result {
	return ack(c.svc.Reopen(ctx, request(&api.StatusRequest{SessionID: sessionID}, auth)))
}

// UpdateHostStep records the owner's current screen.
func (c *Client) UpdateHostStep(ctx context.Context, auth Auth, sessionID string, step int) Result {
	return ack(c.svc.UpdateHostStep(ctx, request(&api.UpdateHostStepRequest{SessionID: sessionID, Step: step}, auth)))
}

// AddParticipant adds a participant on the owner's behalf.
func (c *Client) AddParticipant(ctx context.Context, auth Auth, sessionID, name string) Result {
	return ack(c.svc.AddParticipant(ctx, request(&api.AddParticipantRequest{SessionID: sessionID, Name: name}, auth)))
}

// RemoveParticipant removes a participant and their claims.
func (c *Client) RemoveParticipant(ctx context.Context, auth Auth, sessionID, participantID string) Result {
	return ack(c.svc.RemoveParticipant(ctx, request(&api.RemoveParticipantRequest{SessionID: sessionID, ParticipantID: participantID}, auth)))
}

// RenameParticipant renames a participant.
func (c *Client) RenameParticipant(ctx context.Context, auth Auth, sessionID, participantID, name string) Result {
	return ack(c.svc.RenameParticipant(ctx, request(&api.RenameParticipantRequest{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Name:          name,
	}, auth)))
}

// Joined is the result of Join and SelectParticipant.
type Joined struct {
	Result
	Participant models.Participant
}

func joined(resp *connect.Response[api.ParticipantResponse], err error) Joined {
	if err != nil {
		return Joined{Result: Failure(err)}
	}
	if err := checkVersion(resp.Msg.SchemaVersion); err != nil {
		return Joined{Result: Result{Outcome: Failed, Err: err}}
	}
	p := resp.Msg.Participant
	return Joined{
		Result:      Result{Outcome: OK, ID: p.ID, LastUpdated: resp.Msg.LastUpdated},
		Participant: models.Participant{ID: p.ID, Name: p.Name, Role: models.Role(p.Role)},
	}
}

// Join adds the calling device as a new editor named name.
func (c *Client) Join(ctx context.Context, auth Auth, sessionID, name string) Joined {
	return joined(c.svc.Join(ctx, request(&api.JoinRequest{SessionID: sessionID, Name: name}, auth)))
}

// SelectParticipant binds the calling device to an existing participant.
func (c *Client) SelectParticipant(ctx context.Context, auth Auth, sessionID, participantID string) Joined {
	return joined(c.svc.SelectParticipant(ctx, request(&api.SelectParticipantRequest{SessionID: sessionID, ParticipantID: participantID}, auth)))
}
