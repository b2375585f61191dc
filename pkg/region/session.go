package region

import (
	"fmt"

	apperrors "go-roi-inspector/internal/errors"
)

// Session is the working set of regions plus the id counter. Ids start at 1,
// increase monotonically and are never reused, even after Remove or Clear.
// A Session is not safe for concurrent use.
type Session struct {
	regions []Region
	nextID  int
}

// NewSession returns an empty session whose first id is 1.
func NewSession() *Session {
	return &Session{nextID: 1}
}

// Add validates the geometry and appends it under the next id.
func (s *Session) Add(g Geometry) (Region, error) {
	r, err := New(s.nextID, g)
	if err != nil {
		return Region{}, err
	}
	s.nextID++
	s.regions = append(s.regions, r)
	return r, nil
}

// Import appends template regions, renumbering them after the ids already
// issued. The returned slice holds the regions as stored.
func (s *Session) Import(regions []Region) []Region {
	added := make([]Region, 0, len(regions))
	for _, r := range regions {
		r.ID = s.nextID
		s.nextID++
		s.regions = append(s.regions, r)
		added = append(added, r)
	}
	return added
}

// Remove deletes the region with the given id.
func (s *Session) Remove(id int) bool {
	for i, r := range s.regions {
		if r.ID == id {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return true
		}
	}
	return false
}

// Get looks a region up by id.
func (s *Session) Get(id int) (Region, bool) {
	for _, r := range s.regions {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// Clear drops every region but keeps the counter.
func (s *Session) Clear() {
	s.regions = nil
}

// Regions returns a copy of the ordered region list.
func (s *Session) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

func (s *Session) Len() int    { return len(s.regions) }
func (s *Session) NextID() int { return s.nextID }

// Validate checks every region's geometry and reports the first failure.
func (s *Session) Validate() error {
	return ValidateAll(s.regions)
}

// ValidateAll checks the id and geometry of each region in order.
func ValidateAll(regions []Region) error {
	seen := make(map[int]struct{}, len(regions))
	for _, r := range regions {
		if r.ID < 1 {
			return apperrors.NewInvalidInputError(fmt.Sprintf("region id must be >= 1, got %d", r.ID), nil)
		}
		if _, dup := seen[r.ID]; dup {
			return apperrors.NewInvalidInputError(fmt.Sprintf("duplicate region id %d", r.ID), nil)
		}
		seen[r.ID] = struct{}{}
		if _, err := r.Geometry(); err != nil {
			return err
		}
	}
	return nil
}
