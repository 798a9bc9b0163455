package model

import "time"

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tasks       []string  `json:"tasks"`
	Users       []string  `json:"users"`
	Progress    int       `json:"progress"` // derived from Tasks, never set by clients
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMember reports whether userID is in the project's member set.
func (p *Project) HasMember(userID string) bool {
	for _, u := range p.Users {
		if u == userID {
			return true
		}
	}
	return false
}
