package repositories

import (
	"fmt"

	"estateBack/internal/models"
)

// persistenceError tags a database failure so callers can map it without
// knowing the driver.
func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
}
