package leads

// CreateLeadRequest captures the new lead form.
type CreateLeadRequest struct {
	Name           string  `validate:"required,max=200"`
	Phone          string  `validate:"omitempty,max=30"`
	Email          string  `validate:"omitempty,email,max=200"`
	Product        string  `validate:"required,oneof=savings credit_card personal_loan mortgage sme_loan wealth"`
	Source         string  `validate:"required,oneof=walk_in referral field campaign online"`
	Value          float64 `validate:"gte=0"`
	AssignedTo     int64   `validate:"gte=0"`
	IdempotencyKey string  `validate:"omitempty,uuid"`
}

// ListFilter narrows lead listings.
type ListFilter struct {
	Status     Status
	AssignedTo int64
	Search     string
	Page       int
	PerPage    int
}

func (f ListFilter) limitOffset() (int, int) {
	perPage := f.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
