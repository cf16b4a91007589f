package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/receiptsplit/internal/models"
)

const (
	keyDeviceID      = "device_id"
	keyPointerPrefix = "participant:"
	keyOwnerPrefix   = "owner_token:"
)

// Pointer is the cached "this device is participant X" record.
type Pointer struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

// Keeper reads and writes device identity through a LocalStore.
type Keeper struct {
	store LocalStore
}

// NewKeeper wraps store.
func NewKeeper(store LocalStore) *Keeper {
	return &Keeper{store: store}
}

// DeviceID returns the persisted device id, generating one on first use.
func (k *Keeper) DeviceID(ctx context.Context) (string, error) {
	id, ok, err := k.store.Get(ctx, keyDeviceID)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := k.store.Set(ctx, keyDeviceID, id); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

// Pointer returns the cached participant pointer for sessionID, or nil.
func (k *Keeper) Pointer(ctx context.Context, sessionID string) (*Pointer, error) {
	raw, ok, err := k.store.Get(ctx, keyPointerPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("read participant pointer: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var p Pointer
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ParticipantID == "" {
		// A corrupt pointer is as good as none.
		return nil, nil
	}
	return &p, nil
}

// SavePointer caches the participant this device acts as in sessionID.
func (k *Keeper) SavePointer(ctx context.Context, sessionID string, p Pointer) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode participant pointer: %w", err)
	}
	if err := k.store.Set(ctx, keyPointerPrefix+sessionID, string(raw)); err != nil {
		return fmt.Errorf("save participant pointer: %w", err)
	}
	return nil
}

// ClearPointer forgets the participant pointer for sessionID.
func (k *Keeper) ClearPointer(ctx context.Context, sessionID string) error {
	if err := k.store.Delete(ctx, keyPointerPrefix+sessionID); err != nil {
		return fmt.Errorf("clear participant pointer: %w", err)
	}
	return nil
}

// OwnerToken returns the owner credential held for sessionID, or "".
func (k *Keeper) OwnerToken(ctx context.Context, sessionID string) (string, error) {
	token, _, err := k.store.Get(ctx, keyOwnerPrefix+sessionID)
	if err != nil {
		return "", fmt.Errorf("read owner token: %w", err)
	}
	return token, nil
}

// SaveOwnerToken stores the owner credential for sessionID.
func (k *Keeper) SaveOwnerToken(ctx context.Context, sessionID, token string) error {
	if err := k.store.Set(ctx, keyOwnerPrefix+sessionID, token); err != nil {
		return fmt.Errorf("save owner token: %w", err)
	}
	return nil
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// Current is the participant this device acts as, nil when the device
	// should be prompted to join or pick a participant.
	Current *models.Participant

	// Stale reports that the pointer named a participant that no longer
	// exists. The caller should clear it.
	Stale bool
}

// Resolve decides who the device is from its cached pointer, whether it holds
// an owner credential, and the freshly loaded participant list.
//
// This only drives UI state: the server authorizes every write on its own.
func Resolve(pointer *Pointer, hasOwnerToken bool, participants []models.Participant) Resolution {
	var res Resolution
	if pointer != nil {
		for _, p := range participants {
			if p.ID == pointer.ParticipantID {
				p := p
				res.Current = &p
				return res
			}
		}
		res.Stale = true
	}

	if hasOwnerToken {
		for _, p := range participants {
			if p.Role == models.RoleOwner {
				p := p
				res.Current = &p
				return res
			}
		}
	}
	return res
}
