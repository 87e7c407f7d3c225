package ingest

import (
	"encoding/json"
	"fmt"
)

// jsonParser accepts either an array of objects or an object exposing a
// "users" array. Any other shape fails the whole upload.
type jsonParser struct{}

func (jsonParser) Parse(data []byte) ([]RawRecord, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch v := payload.(type) {
	case []any:
		return objectRecords(v)
	case map[string]any:
		users, ok := v["users"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected an array of users or an object with a users array", ErrMalformedPayload)
		}
		return objectRecords(users)
	default:
		return nil, fmt.Errorf("%w: expected an array of users or an object with a users array", ErrMalformedPayload)
	}
}

func objectRecords(items []any) ([]RawRecord, error) {
	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: users array must contain objects", ErrMalformedPayload)
		}
		records = append(records, RawRecord(obj))
	}
	return records, nil
}
