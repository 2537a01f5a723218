package entities

// Page is one slice of a listing together with the unpaginated total.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}
