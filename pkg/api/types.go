// Package api defines the wire schema of the SessionService.
//
// Messages are plain JSON documents exchanged over the connect protocol (see
// Codec). Every response embeds SchemaVersion so clients can reject payloads
// from an incompatible server.
package api

// SchemaVersion is the version of the message shapes in this package.
const SchemaVersion = 1

// Header names carried on every request.
const (
	HeaderDeviceID = "X-Device-Id"
	HeaderAuth     = "Authorization"
)

// Item is a receipt line.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Mode     string  `json:"mode"`
}

// Participant is one person in a session.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Assignment is a quantity claim by one participant.
type Assignment struct {
	ParticipantID string  `json:"participantId"`
	Quantity      float64 `json:"quantity"`
}

// Charge is a session-wide tip, tax, fee or discount.
type Charge struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	ValueType    string  `json:"valueType"`
	IsDiscount   bool    `json:"isDiscount"`
	Distribution string  `json:"distribution"`
}

// MutableState is the part of a session that changes after creation.
type MutableState struct {
	Status       string                  `json:"status"`
	HostStep     int                     `json:"hostStep"`
	Items        []Item                  `json:"items"`
	Participants []Participant           `json:"participants"`
	Assignments  map[string][]Assignment `json:"assignments"`
	Charges      []Charge                `json:"charges"`
	Subtotal     float64                 `json:"subtotal"`
	Total        float64                 `json:"total"`
	NumberFormat string                  `json:"numberFormat,omitempty"`
}

// Session is a full session snapshot.
type Session struct {
	ID            string `json:"id"`
	LastUpdated   string `json:"lastUpdated"`
	LastUpdatedBy string `json:"lastUpdatedBy,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
	MutableState
}

// Ack acknowledges an accepted mutation.
type Ack struct {
	SchemaVersion int `json:"v"`

	// ID is the server-assigned id of a created entity, if any.
	ID string `json:"id,omitempty"`

	// LastUpdated is the session cursor after the mutation.
	LastUpdated string `json:"lastUpdated"`
}

// CreateSessionRequest creates a session owned by the caller.
type CreateSessionRequest struct {
	OwnerName    string   `json:"ownerName"`
	Items        []Item   `json:"items,omitempty"`
	Charges      []Charge `json:"charges,omitempty"`
	Subtotal     float64  `json:"subtotal,omitempty"`
	Total        float64  `json:"total,omitempty"`
	NumberFormat string   `json:"numberFormat,omitempty"`
}

// CreateSessionResponse carries the new session and the owner credential.
type CreateSessionResponse struct {
	SchemaVersion int     `json:"v"`
	Session       Session `json:"session"`
	OwnerToken    string  `json:"ownerToken"`
	OwnerID       string  `json:"ownerId"`
}

// GetSessionRequest asks for a full snapshot.
type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// GetSessionResponse is a full snapshot.
type GetSessionResponse struct {
	SchemaVersion int     `json:"v"`
	Session       Session `json:"session"`
}

// GetChangesRequest asks for changes after a cursor.
type GetChangesRequest struct {
	SessionID string `json:"sessionId"`
	Since     string `json:"since"`
}

// GetChangesResponse carries the mutable slice when the session moved past
// Since. State is nil when HasChanges is false.
type GetChangesResponse struct {
	SchemaVersion int           `json:"v"`
	HasChanges    bool          `json:"hasChanges"`
	LastUpdated   string        `json:"lastUpdated"`
	State         *MutableState `json:"state,omitempty"`
}

// AssignRequest sets one participant's claim on an assignment key.
type AssignRequest struct {
	SessionID     string  `json:"sessionId"`
	Key           string  `json:"key"`
	ParticipantID string  `json:"participantId"`
	Quantity      float64 `json:"quantity"`
	Assigned      bool    `json:"assigned"`
	UpdatedBy     string  `json:"updatedBy,omitempty"`
}

// AddItemRequest appends an item.
type AddItemRequest struct {
	SessionID string `json:"sessionId"`
	Item      Item   `json:"item"`
}

// UpdateItemRequest patches an item. Nil fields are left untouched.
type UpdateItemRequest struct {
	SessionID string   `json:"sessionId"`
	ItemID    string   `json:"itemId"`
	Name      *string  `json:"name,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Quantity  *int     `json:"quantity,omitempty"`
	Mode      *string  `json:"mode,omitempty"`
}

// DeleteItemRequest removes an item and its claims.
type DeleteItemRequest struct {
	SessionID string `json:"sessionId"`
	ItemID    string `json:"itemId"`
}

// UpdateChargesRequest replaces the charge list.
type UpdateChargesRequest struct {
	SessionID string   `json:"sessionId"`
	Charges   []Charge `json:"charges"`
}

// UpdateTotalsRequest sets the receipt's printed subtotal and total.
type UpdateTotalsRequest struct {
	SessionID string  `json:"sessionId"`
	Subtotal  float64 `json:"subtotal"`
	Total     float64 `json:"total"`
}

// StatusRequest finalizes or reopens a session.
type StatusRequest struct {
	SessionID string `json:"sessionId"`
}

// UpdateHostStepRequest records the owner's current screen.
type UpdateHostStepRequest struct {
	SessionID string `json:"sessionId"`
	Step      int    `json:"step"`
}

// AddParticipantRequest adds a participant on the owner's behalf.
type AddParticipantRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

// RemoveParticipantRequest removes a participant and their claims.
type RemoveParticipantRequest struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

// RenameParticipantRequest renames a participant.
type RenameParticipantRequest struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

// JoinRequest adds the calling device as a new editor.
type JoinRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

// SelectParticipantRequest binds the calling device to an existing participant.
type SelectParticipantRequest struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

// ParticipantResponse returns the participant a join or select resolved to.
type ParticipantResponse struct {
	SchemaVersion int         `json:"v"`
	Participant   Participant `json:"participant"`
	LastUpdated   string      `json:"lastUpdated"`
}
