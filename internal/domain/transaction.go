package domain

import (
	"time"
)

// TransactionRow is one cleaned transaction supplied by the upstream data
// pipeline. Batches must already be filtered to a single corridor.
type TransactionRow struct {
	Amount        float64   `json:"amount"`
	SenderID      string    `json:"sender_id"`
	BeneficiaryID string    `json:"beneficiary_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Batch is an ordered set of transactions for one corridor.
type Batch []TransactionRow

// BatchRequest is the payload a caller submits to build or refresh a profile.
// FraudLabels, when present, must be parallel to Transactions.
type BatchRequest struct {
	Transactions []TransactionRow `json:"transactions"`
	FraudLabels  []bool           `json:"fraudLabels,omitempty"`
}

// ProfileMetadata is the cheap summary of a corridor's current profile,
// served without the full statistical payload.
type ProfileMetadata struct {
	CorridorCode      string    `json:"corridorCode"`
	Version           string    `json:"version"`
	ProfileDate       time.Time `json:"profileDate"`
	TransactionCount  int64     `json:"transactionCount"`
	BaselineFraudRate float64   `json:"baselineFraudRate"`
}
