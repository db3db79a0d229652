package dto

type NotificationResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body"`
	JobOrderID  *string `json:"job_order_id"`
	EmailStatus string  `json:"email_status"`
	CreatedAt   string  `json:"created_at"`
	ReadAt      *string `json:"read_at"`
}
