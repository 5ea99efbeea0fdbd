package model

// KeyInfo describes one key in a listing page.
type KeyInfo struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListPage is the backend-native listing shape returned by GET /keys/list.
// Cursor is empty once ListComplete is true.
type ListPage struct {
	Keys         []KeyInfo `json:"keys"`
	ListComplete bool      `json:"list_complete"`
	Cursor       string    `json:"cursor,omitempty"`
}
