package policy

import (
	"context"
	"fmt"
	"slices"
)

// Resolver maps a subject to the containers it may query. Resolve never
// fails for an unknown subject; it returns an empty set. The error return
// is reserved for infrastructure-backed implementations.
type Resolver interface {
	Resolve(ctx context.Context, subjectID string) ([]string, error)
	IsAuthorized(ctx context.Context, subjectID, container string) (bool, error)
}

// StaticResolver serves a fixed subject→containers table loaded from
// configuration at startup. Read-only after construction, so it is safe for
// concurrent use without synchronization.
type StaticResolver struct {
	assignments map[string][]string
}

// NewStaticResolver validates every assigned container against the known
// container set and rejects unknown names up front.
func NewStaticResolver(assignments map[string][]string, knownContainers []string) (*StaticResolver, error) {
	copied := make(map[string][]string, len(assignments))
	for subject, containers := range assignments {
		for _, container := range containers {
			if !slices.Contains(knownContainers, container) {
				return nil, fmt.Errorf("policy for subject %q references unknown container %q", subject, container)
			}
		}
		list := slices.Clone(containers)
		slices.Sort(list)
		copied[subject] = slices.Compact(list)
	}
	return &StaticResolver{assignments: copied}, nil
}

func (r *StaticResolver) Resolve(_ context.Context, subjectID string) ([]string, error) {
	return slices.Clone(r.assignments[subjectID]), nil
}

func (r *StaticResolver) IsAuthorized(ctx context.Context, subjectID, container string) (bool, error) {
	allowed, err := r.Resolve(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return slices.Contains(allowed, container), nil
}
