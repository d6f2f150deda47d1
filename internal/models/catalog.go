package models

import "time"

// Cluster is an execution target known to the catalog
type Cluster struct {
	ID        string    `json:"id" toml:"id"`
	Name      string    `json:"name" toml:"name"`
	Tags      []string  `json:"tags,omitempty" toml:"tags"`
	UpdatedAt time.Time `json:"updated_at,omitempty" toml:"-"`
}

// Command is an executable registered in the catalog. MemoryMB is the
// command's default memory when the request does not ask for any (0 = none).
type Command struct {
	ID             string    `json:"id" toml:"id"`
	Name           string    `json:"name" toml:"name"`
	Tags           []string  `json:"tags,omitempty" toml:"tags"`
	Executable     []string  `json:"executable" toml:"executable"`
	MemoryMB       int       `json:"memory_mb,omitempty" toml:"memory_mb"`
	ApplicationIDs []string  `json:"application_ids,omitempty" toml:"application_ids"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" toml:"-"`
}

// Application is a dependency a command needs at launch time
type Application struct {
	ID        string    `json:"id" toml:"id"`
	Name      string    `json:"name" toml:"name"`
	Tags      []string  `json:"tags,omitempty" toml:"tags"`
	UpdatedAt time.Time `json:"updated_at,omitempty" toml:"-"`
}

// HasTags reports whether the entity's tag set contains every wanted tag
func HasTags(entityTags []string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(entityTags))
	for _, t := range entityTags {
		have[t] = struct{}{}
	}
	for _, t := range wanted {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
