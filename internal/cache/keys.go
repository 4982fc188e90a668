package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

// RateKey identifies one rate window: route class + owner + client address.
func RateKey(class, ownerID, addr string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", class, ownerID, addr)
}
