package model

import "time"

const (
	MinProgress = 0
	MaxProgress = 100

	MinWeight     = 1
	MaxWeight     = 100
	DefaultWeight = 1
)

type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ProjectID string    `json:"project"`
	SubTasks  []string  `json:"sub_tasks"`
	Progress  int       `json:"progress"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ManualProgress is the last value set directly. It becomes Progress
	// again whenever the task has no subtasks.
	ManualProgress int `json:"-"`
}

type SubTask struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaskID    string    `json:"task"`
	ProjectID string    `json:"project"` // copied from the task at creation
	Progress  int       `json:"progress"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
