package rbac

import (
	"context"
	"sort"
)

// Service resolves effective permission sets.
type Service struct {
	grants GrantRepository
}

// NewService constructs a Service backed by the provided grant repository.
func NewService(grants GrantRepository) *Service {
	return &Service{grants: grants}
}

// EffectivePermissions unions the static role table with the user's custom
// grants. The result is deduplicated and sorted; a wildcard entry grants
// everything and callers must treat it as such.
func (s *Service) EffectivePermissions(ctx context.Context, userID string, role Role) ([]string, error) {
	set := make(map[string]struct{})
	for _, p := range rolePermissions[role] {
		set[p] = struct{}{}
	}
	if s.grants != nil {
		grants, err := s.grants.GrantsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			for _, p := range g.Permissions {
				if p == "" {
					continue
				}
				set[p] = struct{}{}
			}
		}
	}
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, nil
}
