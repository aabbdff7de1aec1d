package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRecordID generates a UUIDv7 dispatch record identifier.
// Time-ordered IDs keep log lines for one burst of traps sortable.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRecordID() RecordID {
	return RecordID(uuid.Must(uuid.NewV7()).String())
}

// RecordIDTime extracts the creation time embedded in a UUIDv7 record ID,
// or the zero time for anything else.
func RecordIDTime(id RecordID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
