package catalog

import "github.com/google/uuid"

// newID generates a fresh id by rejection sampling: draw a
// uuid, check it against the registry, retry on the vanishingly rare
// collision.
func newID(taken func(id string) bool) string {
	for {
		id := uuid.New().String()
		if !taken(id) {
			return id
		}
	}
}
