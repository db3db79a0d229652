package dto

type DelegateEntry struct {
	UserID   string `json:"user_id"  validate:"required,uuid"`
	Priority int    `json:"priority" validate:"required,min=1"`
	Active   *bool  `json:"active"`
}

type SetDelegationRequest struct {
	Delegates []DelegateEntry `json:"delegates" validate:"dive"`
}

type DelegateResponse struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Active   bool   `json:"active"`
}

type DelegationResponse struct {
	DelegatorID string             `json:"delegator_id"`
	Primary     *DelegateResponse  `json:"primary"`
	Delegates   []DelegateResponse `json:"delegates"`
}
