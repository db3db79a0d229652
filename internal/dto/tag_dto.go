package dto

// TagFilter is bound from query string of GET /v1/tags.
type TagFilter struct {
	Status string `form:"status" validate:"omitempty,oneof=available allocated used removed"`
}

type CreateTagRequest struct {
	TagNumber string `json:"tag_number" validate:"required,min=1,max=64"`
}

type AllocateTagRequest struct {
	JobOrderID string `json:"job_order_id" validate:"required,uuid"`
}

type RemoveTagRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

type TagResponse struct {
	ID            string  `json:"id"`
	TagNumber     string  `json:"tag_number"`
	Status        string  `json:"status"`
	JobOrderID    *string `json:"job_order_id"`
	CreatedAt     string  `json:"created_at"`
	AllocatedAt   *string `json:"allocated_at"`
	UsedAt        *string `json:"used_at"`
	RemovedAt     *string `json:"removed_at"`
	RemovalReason *string `json:"removal_reason"`
}
