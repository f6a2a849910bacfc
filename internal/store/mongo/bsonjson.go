package mongo

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
)

// bsonMarshalJSON converts a Go value to BSON via its JSON representation,
// so domain types keep a single struct-tag-free encoding (their own
// MarshalJSON/UnmarshalJSON, where they have one) instead of needing
// parallel bson tags.
func bsonMarshalJSON(v any) (bson.Raw, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return bson.Marshal(m)
}

func bsonUnmarshalJSON(raw bson.Raw, out any) error {
	if len(raw) == 0 {
		return nil
	}
	var m any
	if err := bson.Unmarshal(raw, &m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
