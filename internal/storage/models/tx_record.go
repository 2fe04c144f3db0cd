// internal/storage/models/tx_record.go
package models

// Record statuses.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// TxRecord is one transaction submitted by the client. An operation that
// needs an approval produces two records sharing OperationID.
type TxRecord struct {
	BaseModel
	OperationID string `gorm:"index;not null;type:varchar(36)"`
	Operation   string `gorm:"index;not null;type:varchar(32)"`
	Step        string `gorm:"not null;type:varchar(32)"`
	Account     string `gorm:"index;not null;type:varchar(42)"`
	TxHash      string `gorm:"index;type:varchar(66)"`
	Amount      string `gorm:"not null;type:varchar(80)"` // 18-decimal integer as a decimal string
	Status      string `gorm:"index;not null;type:varchar(20)"`
	FailureKind string `gorm:"type:varchar(32)"`
	Error       string `gorm:"type:text"`
	GasUsed     uint64
	Block       uint64
	DurationMs  int64
}

// Stats aggregates records of one account. Total, Confirmed, Failed and
// ByFailure count transactions; ByOperation counts actions by OperationID.
type Stats struct {
	Total       int64
	Confirmed   int64
	Failed      int64
	ByOperation map[string]int64
	ByFailure   map[string]int64
}
