package result

// Int64 returns a pointer to v, for optional numeric metadata fields.
func Int64(v int64) *int64 {
	return &v
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
