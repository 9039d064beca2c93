package domain

// SortOrder is the direction of a list sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Defaults applied by the validator when a list parameter is absent.
const (
	DefaultPageNo    = 1
	DefaultPageSize  = 100
	DefaultSortBy    = "created_at"
	DefaultSortOrder = SortDesc
)

// SortableFields lists the keys accepted by sort_by.
var SortableFields = map[string]bool{
	"id":         true,
	"email":      true,
	"first_name": true,
	"last_name":  true,
	"phone":      true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// Filter holds the normalized list/count filters. Nil or empty fields are not applied.
type Filter struct {
	IDs       []int64
	Status    *UserStatus
	Search    *string
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// ListQuery is the normalized input of the list operation. Count uses Filter only.
type ListQuery struct {
	Filter
	PageNo    int
	PageSize  int
	SortBy    string
	SortOrder SortOrder
}
