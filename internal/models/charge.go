package models

// ValueType says how a charge's Value is read.
type ValueType string

const (
	// ValuePercent reads Value as a percentage of the global subtotal.
	ValuePercent ValueType = "percent"
	// ValueFixed reads Value as an absolute amount.
	ValueFixed ValueType = "fixed"
)

// Distribution says how a charge amount is spread across participants.
type Distribution string

const (
	// DistributeProportional splits the amount by each participant's share
	// of the global subtotal.
	DistributeProportional Distribution = "proportional"
	// DistributePerPerson divides the amount evenly across participants.
	DistributePerPerson Distribution = "per_person"
	// DistributeFixedPerPerson charges the full amount to every participant.
	DistributeFixedPerPerson Distribution = "fixed_per_person"
)

// Charge is a session-wide tip, tax, fee or discount.
type Charge struct {
	ID           string
	Name         string
	Value        float64
	ValueType    ValueType
	IsDiscount   bool
	Distribution Distribution
}
