package lockmgr

import (
	"github.com/google/uuid"
)

// generateOwnerID creates a new unique owner ID (random UUID, version 4)
func generateOwnerID() ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return []byte(id.String()), nil
}
