// Package models defines the domain model for a shared receipt session.
//
// # Models
//
//   - Session: the root aggregate, one per receipt being split
//   - Item: a receipt line with a unit price and a quantity
//   - Participant: the owner who created the session, or an editor who joined
//   - Assignments: quantity claims keyed by item id or per-unit key
//   - Charge: a session-wide tip, tax, fee or discount
//
// # Ownership
//
// The server owns the authoritative Session. Each client holds a provisional
// copy that is reconciled by polling or by an acknowledged mutation. Published
// sessions are treated as immutable values: writers Clone, modify the copy and
// swap the pointer.
//
// # Relationships
//
// Relationships use ID strings instead of pointers. Assignment keys reference
// item ids; claims reference participant ids.
package models
