package model

import "time"

// 任务优先级
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ValidPriority 优先级是否合法
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Task struct {
	ID                 int64          `json:"id"`
	ProjectID          int64          `json:"project_id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	AssigneeID         *int64         `json:"assignee_id,omitempty"`
	Assignee           *UserRef       `json:"assignee,omitempty"`
	Status             string         `json:"status"`
	Priority           string         `json:"priority"`
	Progress           int            `json:"progress"`
	PlannedStart       *time.Time     `json:"planned_start,omitempty"`
	PlannedEnd         *time.Time     `json:"planned_end,omitempty"`
	ActualStart        *time.Time     `json:"actual_start,omitempty"`
	ActualEnd          *time.Time     `json:"actual_end,omitempty"`
	PlannedEffortHours float64        `json:"planned_effort_hours"`
	ActualEffortHours  float64        `json:"actual_effort_hours"`
	Dependencies       []int64        `json:"dependencies"`
	ParentID           *int64         `json:"parent_id,omitempty"`
	IsMilestone        bool           `json:"is_milestone"`
	IsCritical         bool           `json:"is_critical"`
	Attachments        []Attachment   `json:"attachments"`
	CustomFields       map[string]any `json:"custom_fields"`
	Position           int            `json:"position"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadedBy int64     `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TaskChange 任务变更历史，只追加
type TaskChange struct {
	ID            int64     `json:"id"`
	TaskID        int64     `json:"task_id"`
	Field         string    `json:"field"`
	OldValue      string    `json:"old_value"`
	NewValue      string    `json:"new_value"`
	UserID        int64     `json:"user_id"`
	Justification string    `json:"justification,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}
