package application

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/example/roster-draft/internal/persistence"
)

// encodeEventCursor produces the opaque pagination token for the last row of
// a page: base64 over the row's identity and ordering key.
func encodeEventCursor(event persistence.ScheduledEvent) string {
	payload, err := json.Marshal(persistence.EventKey{
		ID:            event.ID,
		ScheduledTime: event.ScheduledTime,
	})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(payload)
}

// decodeEventCursor parses a pagination token back into a keyset position.
func decodeEventCursor(cursor string) (persistence.EventKey, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return persistence.EventKey{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var key persistence.EventKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return persistence.EventKey{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if key.ID == "" || key.ScheduledTime.IsZero() {
		return persistence.EventKey{}, fmt.Errorf("%w: missing fields", ErrInvalidCursor)
	}
	return key, nil
}
