package model

import (
	"strings"
	"time"
)

type Project struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ManagerID     int64          `json:"manager_id"`
	Manager       *UserRef       `json:"manager,omitempty"`
	Team          []TeamMember   `json:"team"`
	PlannedStart  *time.Time     `json:"planned_start,omitempty"`
	PlannedEnd    *time.Time     `json:"planned_end,omitempty"`
	ActualStart   *time.Time     `json:"actual_start,omitempty"`
	ActualEnd     *time.Time     `json:"actual_end,omitempty"`
	PlannedBudget float64        `json:"planned_budget"`
	ActualCost    float64        `json:"actual_cost"`
	Tasks         []Task         `json:"tasks,omitempty"`
	KPIs          map[string]any `json:"kpis"`
	Config        ProjectConfig  `json:"config"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TeamMember 项目成员及其在项目中的角色（自由文本，例如 "developer"）
type TeamMember struct {
	User UserRef `json:"user"`
	Role string  `json:"role"`
}

// HasMember 用户是否为经理或团队成员
func (p *Project) HasMember(userID int64) bool {
	if p.ManagerID == userID {
		return true
	}
	for _, m := range p.Team {
		if m.User.ID == userID {
			return true
		}
	}
	return false
}

// ProjectConfig 项目级配置，整体以 JSONB 存储
type ProjectConfig struct {
	Statuses     []StatusDefinition `json:"statuses"`
	CustomFields []CustomField      `json:"custom_fields"`
	CustomCharts []CustomChart      `json:"custom_charts"`
	AlertRules   []AlertRule        `json:"alert_rules"`
}

type StatusDefinition struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	IsCompleted bool   `json:"is_completed"`
}

// 自定义字段类型
const (
	FieldTypeText   = "text"
	FieldTypeNumber = "number"
	FieldTypeDate   = "date"
	FieldTypeSelect = "select"
)

type CustomField struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

type CustomChart struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"` // bar / line / pie
	Metric  string `json:"metric"`
	GroupBy string `json:"group_by,omitempty"`
}

// DefaultStatuses 未配置状态时使用
func DefaultStatuses() []StatusDefinition {
	return []StatusDefinition{
		{Name: "To Do", Color: "#9ca3af"},
		{Name: "In Progress", Color: "#3b82f6"},
		{Name: "Done", Color: "#22c55e", IsCompleted: true},
	}
}

// EffectiveStatuses 返回配置的状态，为空时返回默认状态
func (c ProjectConfig) EffectiveStatuses() []StatusDefinition {
	if len(c.Statuses) == 0 {
		return DefaultStatuses()
	}
	return c.Statuses
}

// HasStatus 状态名是否在配置中
func (c ProjectConfig) HasStatus(name string) bool {
	for _, s := range c.EffectiveStatuses() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// IsCompletedStatus 状态是否标记为完成
func (c ProjectConfig) IsCompletedStatus(name string) bool {
	for _, s := range c.EffectiveStatuses() {
		if s.Name == name {
			return s.IsCompleted
		}
	}
	return false
}

// DefaultStatus 新建任务的默认状态
func (c ProjectConfig) DefaultStatus() string {
	return c.EffectiveStatuses()[0].Name
}

// FindCustomField 按 key 查找自定义字段（忽略大小写）
func (c ProjectConfig) FindCustomField(key string) (CustomField, bool) {
	for _, f := range c.CustomFields {
		if strings.EqualFold(f.Key, key) {
			return f, true
		}
	}
	return CustomField{}, false
}
