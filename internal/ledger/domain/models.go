// Package domain contains the persistence model for the append-only credit ledger.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// OwnerType identifies the billing entity class a ledger entry belongs to.
type OwnerType string

const (
	OwnerTypeIndividual OwnerType = "INDIVIDUAL"
	OwnerTypeTeam       OwnerType = "TEAM"
)

// Owner is the (type, id) pair credits are tracked against. It is threaded
// opaquely through balance/grant/charge logic; only the entitlement resolver
// decides which owner a request bills to.
type Owner struct {
	Type OwnerType
	ID   snowflake.ID
}

func IndividualOwner(id snowflake.ID) Owner {
	return Owner{Type: OwnerTypeIndividual, ID: id}
}

func TeamOwner(id snowflake.ID) Owner {
	return Owner{Type: OwnerTypeTeam, ID: id}
}

func (o Owner) Valid() bool {
	if o.ID == 0 {
		return false
	}
	return o.Type == OwnerTypeIndividual || o.Type == OwnerTypeTeam
}

// EntryType classifies a credit movement.
type EntryType string

const (
	EntryTypeMonthlyGrant EntryType = "MONTHLY_GRANT"
	EntryTypeTopup        EntryType = "TOPUP"
	EntryTypeSpend        EntryType = "SPEND"
	EntryTypeAdjustment   EntryType = "ADJUSTMENT"
)

// PeriodKey is the stable, sortable monthly bucket identifier for recurring
// grants, always derived in UTC.
type PeriodKey string

func PeriodKeyFor(t time.Time) PeriodKey {
	t = t.UTC()
	return PeriodKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// CreditEntry is one immutable signed credit movement. Entries are never
// mutated or deleted; corrections are new ADJUSTMENT entries.
type CreditEntry struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OwnerType     OwnerType    `gorm:"type:text;not null;index:idx_credit_entries_owner,priority:1;uniqueIndex:ux_credit_entries_grant,priority:1,where:type = 'MONTHLY_GRANT'"`
	OwnerID       snowflake.ID `gorm:"not null;index:idx_credit_entries_owner,priority:2;uniqueIndex:ux_credit_entries_grant,priority:2"`
	Type          EntryType    `gorm:"type:text;not null;uniqueIndex:ux_credit_entries_grant,priority:3"`
	AmountCredits float64      `gorm:"not null"`
	PeriodKey     *PeriodKey   `gorm:"type:text;uniqueIndex:ux_credit_entries_grant,priority:4"`
	Ref           *string      `gorm:"type:text"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditEntry) TableName() string { return "credit_entries" }

var (
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidTier         = errors.New("invalid_tier")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)
