package handlers

import "encoding/json"

// decodeJSON is a small wrapper so call sites read the same way
// regardless of whether the bytes came off an inbound request or a
// backend response.
func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
