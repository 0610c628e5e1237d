package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a customer's stored value. TotalSpent and VisitCount grow with
// every debit (consumption or settlement).
type Wallet struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	Points     int64           `json:"points"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	VisitCount int64           `json:"visit_count"`
	LastVisit  *time.Time      `json:"last_visit,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MaxMoney is the largest amount or balance the NUMERIC(12,2) money columns
// hold.
var MaxMoney = decimal.RequireFromString("9999999999.99")

type TransactionKind string

const (
	TxRecharge    TransactionKind = "recharge"
	TxConsumption TransactionKind = "consumption"
	TxSettlement  TransactionKind = "settlement"
)

// Transaction is an append-only ledger entry. Amount is always positive;
// Kind tells whether it credited or debited the wallet.
type Transaction struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	Kind          TransactionKind `json:"kind"`
	Service       string          `json:"service"`
	Amount        decimal.Decimal `json:"amount"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
