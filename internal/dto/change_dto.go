package dto

// ChangeFilter is bound from query string of GET /v1/changes.
type ChangeFilter struct {
	Since uint64 `form:"since"`
	Topic string `form:"topic"`
}

type ChangeEvent struct {
	Seq      uint64 `json:"seq"`
	Topic    string `json:"topic"`
	EntityID string `json:"entity_id,omitempty"`
	Action   string `json:"action,omitempty"`
	At       string `json:"at"`
}

type ChangeFeedResponse struct {
	Events []ChangeEvent `json:"events"`
	// Latest is the highest sequence number known to the server; pass it back as since.
	Latest uint64 `json:"latest"`
	// Reset is true when since is older than the retained log and the client must reload.
	Reset bool `json:"reset"`
}
