package db

// Setting represents a per-entity settings record
type Setting struct {
	EntityID  string `json:"entityId"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// RateLimitResult is the outcome of a rate limit check
type RateLimitResult struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// nowMs returns the store clock as Unix milliseconds
func (d *DB) nowMs() int64 {
	return d.now().UnixMilli()
}

