package model

// Record is a single line of the append-only storage file.
type Record struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	CreatedAt int64  `json:"created_at"`
}
