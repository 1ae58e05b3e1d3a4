package model

// RecordStatus is the lifecycle status of a single transfer record.
// PENDING is the only non-terminal status; a record leaves it at most once.
type RecordStatus string

const (
	StatusPending RecordStatus = "PENDING"
	StatusSuccess RecordStatus = "SUCCESS"
	StatusFailed  RecordStatus = "FAILED"
)

func (s RecordStatus) String() string {
	return string(s)
}

// Terminal reports whether no further status transition is possible.
func (s RecordStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// WorkItem is one unit to be transferred, pinned to its queue position.
// Immutable once the queue is set.
type WorkItem struct {
	UnitID   string `json:"unit_id"`
	Position int    `json:"position"`
}

// TransferRecord is the per-position outcome of a submission. One record is
// appended per submitted unit, in queue order. TxHash is empty when the unit
// was skipped before anything was broadcast.
type TransferRecord struct {
	UnitID   string       `json:"unit_id"`
	Position int          `json:"position"`
	TxHash   string       `json:"tx_hash"`
	Status   RecordStatus `json:"status"`
}

// SessionParams are fixed for the lifetime of one batch run.
type SessionParams struct {
	ContractAddress string `json:"contract_address"`
	Recipient       string `json:"recipient"`
	Sender          string `json:"sender"`
}
