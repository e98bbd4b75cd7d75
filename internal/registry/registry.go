package registry

import (
	"fmt"

	"deskseed/internal/domain"
)

// Registry is the roster of simulated actors for one run. Actors keep the
// order they were added in; every phase iterates in that order.
type Registry struct {
	actors []*domain.Actor
}

// New builds a registry from configured actors. Usernames must be unique.
func New(actors []domain.Actor) (*Registry, error) {
	r := &Registry{}
	seen := map[string]bool{}
	for i := range actors {
		a := actors[i]
		if a.Username == "" {
			return nil, fmt.Errorf("actor %d: username is required", i)
		}
		if !a.Role.Valid() {
			return nil, fmt.Errorf("actor %s: unknown role %q", a.Username, a.Role)
		}
		if seen[a.Username] {
			return nil, fmt.Errorf("actor %s: duplicate username", a.Username)
		}
		seen[a.Username] = true
		r.actors = append(r.actors, &a)
	}
	return r, nil
}

// All returns every actor in registry order.
func (r *Registry) All() []*domain.Actor {
	out := make([]*domain.Actor, len(r.actors))
	copy(out, r.actors)
	return out
}

func (r *Registry) Len() int { return len(r.actors) }

// ByRole returns actors configured with role, usable or not.
func (r *Registry) ByRole(role domain.Role) []*domain.Actor {
	var out []*domain.Actor
	for _, a := range r.actors {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

// Usable returns usable actors with role.
func (r *Registry) Usable(role domain.Role) []*domain.Actor {
	var out []*domain.Actor
	for _, a := range r.actors {
		if a.Role == role && a.Usable() {
			out = append(out, a)
		}
	}
	return out
}

// UsableCount counts actors of any role that are usable.
func (r *Registry) UsableCount() int {
	n := 0
	for _, a := range r.actors {
		if a.Usable() {
			n++
		}
	}
	return n
}

// FirstUsable returns the first usable actor with role.
func (r *Registry) FirstUsable(role domain.Role) (*domain.Actor, bool) {
	for _, a := range r.actors {
		if a.Role == role && a.Usable() {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) ByUsername(username string) (*domain.Actor, bool) {
	for _, a := range r.actors {
		if a.Username == username {
			return a, true
		}
	}
	return nil, false
}

// ByRemoteID finds the actor holding a remote identity.
func (r *Registry) ByRemoteID(id domain.ID) (*domain.Actor, bool) {
	if id == "" {
		return nil, false
	}
	for _, a := range r.actors {
		if a.RemoteID == id {
			return a, true
		}
	}
	return nil, false
}
