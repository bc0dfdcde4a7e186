package convo

// NotFoundError is returned when a conversation doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "conversation not found"
	}

	return "conversation not found: " + e.ID
}
