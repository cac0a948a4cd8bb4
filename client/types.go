package client

type BatchStatusCode string

const (
	StatusPending   BatchStatusCode = "PENDING"
	StatusCommitted BatchStatusCode = "COMMITTED"
	StatusInvalid   BatchStatusCode = "INVALID"
	StatusUnknown   BatchStatusCode = "UNKNOWN"
)

// SubmitResult means the ledger accepted the batches; it says nothing about commitment
type SubmitResult struct {
	Link     string   `json:"link"`
	BatchIDs []string `json:"-"`
}

type InvalidTransaction struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type BatchStatus struct {
	ID                  string               `json:"id"`
	Status              BatchStatusCode      `json:"status"`
	InvalidTransactions []InvalidTransaction `json:"invalid_transactions,omitempty"`
}

// Final is true once the status can no longer change. UNKNOWN is not
// final: the ledger may simply not have recorded the batch yet.
func (s BatchStatus) Final() bool {
	return s.Status == StatusCommitted || s.Status == StatusInvalid
}

type stateResponse struct {
	Data string `json:"data"`
}

type batchStatusesResponse struct {
	Data []BatchStatus `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
