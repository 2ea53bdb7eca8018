package storage

import "errors"

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}
	if e.Key == "" {
		return kind + " not found"
	}
	return kind + " not found: " + e.Key
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// AgentDataKey renders the composite key of an agent data entry.
func AgentDataKey(conversationID, agentID, dataType string) string {
	return conversationID + "/" + agentID + "/" + dataType
}
