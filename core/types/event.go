package types

// Event is the flat wire form of a committed state change. Attribute values are
// rendered strings; amounts are base-unit decimals.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the attribute under key, or "" when absent.
func (e Event) Attr(key string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
