package store

import (
	"encoding/json"
	"fmt"
)

// marshalIDs converts data edge ids to JSON TEXT for storage.
// A nil slice is stored as "[]" so the column is never NULL.
func marshalIDs(ids []int64) (string, error) {
	if ids == nil {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

// unmarshalIDs parses JSON TEXT back into data edge ids.
// Decoding into int64 keeps ids above 2^53 exact.
func unmarshalIDs(data string) ([]int64, error) {
	ids := []int64{}
	if data == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}

// marshalCounts converts per TC-Query counters to JSON TEXT.
func marshalCounts(counts []int) (string, error) {
	if counts == nil {
		return "[]", nil
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return "", fmt.Errorf("marshal counts: %w", err)
	}
	return string(data), nil
}

func unmarshalCounts(data string) ([]int, error) {
	counts := []int{}
	if data == "" {
		return counts, nil
	}
	if err := json.Unmarshal([]byte(data), &counts); err != nil {
		return nil, fmt.Errorf("unmarshal counts: %w", err)
	}
	return counts, nil
}
