// Package apiconnect binds the SessionService to the connect protocol.
//
// Handlers and clients are registered with api.Codec, so every procedure is a
// unary POST with a JSON body.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/receiptsplit/pkg/api"
)

// SessionServiceName is the fully-qualified name of the SessionService.
const SessionServiceName = "receiptsplit.v1.SessionService"

// Procedure paths of the SessionService.
const (
	SessionServiceCreateSessionProcedure     = "/receiptsplit.v1.SessionService/CreateSession"
	SessionServiceGetSessionProcedure        = "/receiptsplit.v1.SessionService/GetSession"
	SessionServiceGetChangesProcedure        = "/receiptsplit.v1.SessionService/GetChanges"
	SessionServiceAssignProcedure            = "/receiptsplit.v1.SessionService/Assign"
	SessionServiceAddItemProcedure           = "/receiptsplit.v1.SessionService/AddItem"
	SessionServiceUpdateItemProcedure        = "/receiptsplit.v1.SessionService/UpdateItem"
	SessionServiceDeleteItemProcedure        = "/receiptsplit.v1.SessionService/DeleteItem"
	SessionServiceUpdateChargesProcedure     = "/receiptsplit.v1.SessionService/UpdateCharges"
	SessionServiceUpdateTotalsProcedure      = "/receiptsplit.v1.SessionService/UpdateTotals"
	SessionServiceFinalizeProcedure          = "/receiptsplit.v1.SessionService/Finalize"
	SessionServiceReopenProcedure            = "/receiptsplit.v1.SessionService/Reopen"
	SessionServiceUpdateHostStepProcedure    = "/receiptsplit.v1.SessionService/UpdateHostStep"
	SessionServiceAddParticipantProcedure    = "/receiptsplit.v1.SessionService/AddParticipant"
	SessionServiceRemoveParticipantProcedure = "/receiptsplit.v1.SessionService/RemoveParticipant"
	SessionServiceRenameParticipantProcedure = "/receiptsplit.v1.SessionService/RenameParticipant"
	SessionServiceJoinProcedure              = "/receiptsplit.v1.SessionService/Join"
	SessionServiceSelectParticipantProcedure = "/receiptsplit.v1.SessionService/SelectParticipant"
)

// SessionServiceHandler is implemented by the server.
type SessionServiceHandler interface {
	CreateSession(context.Context, *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error)
	GetSession(context.Context, *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error)
	GetChanges(context.Context, *connect.Request[api.GetChangesRequest]) (*connect.Response[api.GetChangesResponse], error)
	Assign(context.Context, *connect.Request[api.AssignRequest]) (*connect.Response[api.Ack], error)
	AddItem(context.Context, *connect.Request[api.AddItemRequest]) (*connect.Response[api.Ack], error)
	UpdateItem(context.Context, *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.Ack], error)
	DeleteItem(context.Context, *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.Ack], error)
	UpdateCharges(context.Context, *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.Ack], error)
	UpdateTotals(context.Context, *connect.Request[api.UpdateTotalsRequest]) (*connect.Response[api.Ack], error)
	Finalize(context.Context, *connect.Request[api.StatusRequest]) (*connect.Response[api.Ack], error)
	Reopen(context.Context, *connect.Request[api.StatusRequest]) (*connect.Response[api.Ack], error)
	UpdateHostStep(context.Context, *connect.Request[api.UpdateHostStepRequest]) (*connect.Response[api.Ack], error)
	AddParticipant(context.Context, *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.Ack], error)
	RemoveParticipant(context.Context, *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.Ack], error)
	RenameParticipant(context.Context, *connect.Request[api.RenameParticipantRequest]) (*connect.Response[api.Ack], error)
	Join(context.Context, *connect.Request[api.JoinRequest]) (*connect.Response[api.ParticipantResponse], error)
	SelectParticipant(context.Context, *connect.Request[api.SelectParticipantRequest]) (*connect.Response[api.ParticipantResponse], error)
}

// SessionServiceClient is the client side of the SessionService.
type SessionServiceClient = SessionServiceHandler

// NewSessionServiceHandler builds an HTTP handler serving every procedure.
// It returns the path prefix to mount it on.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SessionServiceCreateSessionProcedure, connect.NewUnaryHandler(SessionServiceCreateSessionProcedure, svc.CreateSession, opts...))
	mux.Handle(SessionServiceGetSessionProcedure, connect.NewUnaryHandler(SessionServiceGetSessionProcedure, svc.GetSession, opts...))
	mux.Handle(SessionServiceGetChangesProcedure, connect.NewUnaryHandler(SessionServiceGetChangesProcedure, svc.GetChanges, opts...))
	mux.Handle(SessionServiceAssignProcedure, connect.NewUnaryHandler(SessionServiceAssignProcedure, svc.Assign, opts...))
	mux.Handle(SessionServiceAddItemProcedure, connect.NewUnaryHandler(SessionServiceAddItemProcedure, svc.AddItem, opts...))
	mux.Handle(SessionServiceUpdateItemProcedure, connect.NewUnaryHandler(SessionServiceUpdateItemProcedure, svc.UpdateItem, opts...))
	mux.Handle(SessionServiceDeleteItemProcedure, connect.NewUnaryHandler(SessionServiceDeleteItemProcedure, svc.DeleteItem, opts...))
	mux.Handle(SessionServiceUpdateChargesProcedure, connect.NewUnaryHandler(SessionServiceUpdateChargesProcedure, svc.UpdateCharges, opts...))
	mux.Handle(SessionServiceUpdateTotalsProcedure, connect.NewUnaryHandler(SessionServiceUpdateTotalsProcedure, svc.UpdateTotals, opts...))
	mux.Handle(SessionServiceFinalizeProcedure, connect.NewUnaryHandler(SessionServiceFinalizeProcedure, svc.Finalize, opts...))
	mux.Handle(SessionServiceReopenProcedure, connect.NewUnaryHandler(SessionServiceReopenProcedure, svc.Reopen, opts...))
	mux.Handle(SessionServiceUpdateHostStepProcedure, connect.NewUnaryHandler(SessionServiceUpdateHostStepProcedure, svc.UpdateHostStep, opts...))
	mux.Handle(SessionServiceAddParticipantProcedure, connect.NewUnaryHandler(SessionServiceAddParticipantProcedure, svc.AddParticipant, opts...))
	mux.Handle(SessionServiceRemoveParticipantProcedure, connect.NewUnaryHandler(SessionServiceRemoveParticipantProcedure, svc.RemoveParticipant, opts...))
	mux.Handle(SessionServiceRenameParticipantProcedure, connect.NewUnaryHandler(SessionServiceRenameParticipantProcedure, svc.RenameParticipant, opts...))
	mux.Handle(SessionServiceJoinProcedure, connect.NewUnaryHandler(SessionServiceJoinProcedure, svc.Join, opts...))
	mux.Handle(SessionServiceSelectParticipantProcedure, connect.NewUnaryHandler(SessionServiceSelectParticipantProcedure, svc.SelectParticipant, opts...))

	return "/" + SessionServiceName + "/", mux
}

type sessionServiceClient struct {
	createSession     *connect.Client[api.CreateSessionRequest, api.CreateSessionResponse]
	getSession        *connect.Client[api.GetSessionRequest, api.GetSessionResponse]
	getChanges        *connect.Client[api.GetChangesRequest, api.GetChangesResponse]
	assign            *connect.Client[api.AssignRequest, api.Ack]
	addItem           *connect.Client[api.AddItemRequest, api.Ack]
	updateItem        *connect.Client[api.UpdateItemRequest, api.Ack]
	deleteItem        *connect.Client[api.DeleteItemRequest, api.Ack]
	updateCharges     *connect.Client[api.UpdateChargesRequest, api.Ack]
	updateTotals      *connect.Client[api.UpdateTotalsRequest, api.Ack]
	finalize          *connect.Client[api.StatusRequest, api.Ack]
	reopen            *connect.Client[api.StatusRequest, api.Ack]
	updateHostStep    *connect.Client[api.UpdateHostStepRequest, api.Ack]
	addParticipant    *connect.Client[api.AddParticipantRequest, api.Ack]
	removeParticipant *connect.Client[api.RemoveParticipantRequest, api.Ack]
	renameParticipant *connect.Client[api.RenameParticipantRequest, api.Ack]
	join              *connect.Client[api.JoinRequest, api.ParticipantResponse]
	selectParticipant *connect.Client[api.SelectParticipantRequest, api.ParticipantResponse]
}

// NewSessionServiceClient builds a client for the service at baseURL.
func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)

	return &sessionServiceClient{
		createSession:     connect.NewClient[api.CreateSessionRequest, api.CreateSessionResponse](httpClient, baseURL+SessionServiceCreateSessionProcedure, opts...),
		getSession:        connect.NewClient[api.GetSessionRequest, api.GetSessionResponse](httpClient, baseURL+SessionServiceGetSessionProcedure, opts...),
		getChanges:        connect.NewClient[api.GetChangesRequest, api.GetChangesResponse](httpClient, baseURL+SessionServiceGetChangesProcedure, opts...),
		assign:            connect.NewClient[api.AssignRequest, api.Ack](httpClient, baseURL+SessionServiceAssignProcedure, opts...),
		addItem:           connect.NewClient[api.AddItemRequest, api.Ack](httpClient, baseURL+SessionServiceAddItemProcedure, opts...),
		updateItem:        connect.NewClient[api.UpdateItemRequest, api.Ack](httpClient, baseURL+SessionServiceUpdateItemProcedure, opts...),
		deleteItem:        connect.NewClient[api.DeleteItemRequest, api.Ack](httpClient, baseURL+SessionServiceDeleteItemProcedure, opts...),
		updateCharges:     connect.NewClient[api.UpdateChargesRequest, api.Ack](httpClient, baseURL+SessionServiceUpdateChargesProcedure, opts...),
		updateTotals:      connect.NewClient[api.UpdateTotalsRequest, api.Ack](httpClient, baseURL+SessionServiceUpdateTotalsProcedure, opts...),
		finalize:          connect.NewClient[api.StatusRequest, api.Ack](httpClient, baseURL+SessionServiceFinalizeProcedure, opts...),
		reopen:            connect.NewClient[api.StatusRequest, api.Ack](httpClient, baseURL+SessionServiceReopenProcedure, opts...),
		updateHostStep:    connect.NewClient[api.UpdateHostStepRequest, api.Ack](httpClient, baseURL+SessionServiceUpdateHostStepProcedure, opts...),
		addParticipant:    connect.NewClient[api.AddParticipantRequest, api.Ack](httpClient, baseURL+SessionServiceAddParticipantProcedure, opts...),
		removeParticipant: connect.NewClient[api.RemoveParticipantRequest, api.Ack](httpClient, baseURL+SessionServiceRemoveParticipantProcedure, opts...),
		renameParticipant: connect.NewClient[api.RenameParticipantRequest, api.Ack](httpClient, baseURL+SessionServiceRenameParticipantProcedure, opts...),
		join:              connect.NewClient[api.JoinRequest, api.ParticipantResponse](httpClient, baseURL+SessionServiceJoinProcedure, opts...),
		selectParticipant: connect.NewClient[api.SelectParticipantRequest, api.ParticipantResponse](httpClient, baseURL+SessionServiceSelectParticipantProcedure, opts...),
	}
}

func (c *sessionServiceClient) CreateSession(ctx context.Context, req *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *sessionServiceClient) GetChanges(ctx context.Context, req *connect.Request[api.GetChangesRequest]) (*connect.Response[api.GetChangesResponse], error) {
	return c.getChanges.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Assign(ctx context.Context, req *connect.Request[api.AssignRequest]) (*connect.Response[api.Ack], error) {
	return c.assign.CallUnary(ctx, req)
}

func (c *sessionServiceClient) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.Ack], error) {
	return c.addItem.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateItem(ctx context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.Ack], error) {
	return c.updateItem.CallUnary(ctx, req)
}

func (c *sessionServiceClient) DeleteItem(ctx context.Context, req *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.Ack], error) {
	return c.deleteItem.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateCharges(ctx context.Context, req *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.Ack], error) {
	return c.updateCharges.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateTotals(ctx context.Context, req *connect.Request[api.UpdateTotalsRequest]) (*connect.Response[api.Ack], error) {
	return c.updateTotals.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Finalize(ctx context.Context, req *connect.Request[api.StatusRequest]) (*connect.Response[api.Ack], error) {
	return c.finalize.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Reopen(ctx context.Context, req *connect.Request[api.StatusRequest]) (*connect.Response[api.Ack], error) {
	return c.reopen.CallUnary(ctx, req)
}

func (c *sessionServiceClient) UpdateHostStep(ctx context.Context, req *connect.Request[api.UpdateHostStepRequest]) (*connect.Response[api.Ack], error) {
	return c.updateHostStep.CallUnary(ctx, req)
}

func (c *sessionServiceClient) AddParticipant(ctx context.Context, req *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.Ack], error) {
	return c.addParticipant.CallUnary(ctx, req)
}

func (c *sessionServiceClient) RemoveParticipant(ctx context.Context, req *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.Ack], error) {
	return c.removeParticipant.CallUnary(ctx, req)
}

func (c *sessionServiceClient) RenameParticipant(ctx context.Context, req *connect.Request[api.RenameParticipantRequest]) (*connect.Response[api.Ack], error) {
	return c.renameParticipant.CallUnary(ctx, req)
}

func (c *sessionServiceClient) Join(ctx context.Context, req *connect.Request[api.JoinRequest]) (*connect.Response[api.ParticipantResponse], error) {
	return c.join.CallUnary(ctx, req)
}

func (c *sessionServiceClient) SelectParticipant(ctx context.Context, req *connect.Request[api.SelectParticipantRequest]) (*connect.Response[api.ParticipantResponse], error) {
	return c.selectParticipant.CallUnary(ctx, req)
}
