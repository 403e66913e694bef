package ai

import (
	"fmt"
	"strings"
)

// 风险等级
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// 项目健康度
const (
	HealthOnTrack  = "on_track"
	HealthAtRisk   = "at_risk"
	HealthOffTrack = "off_track"
)

type result interface {
	validate() error
}

type StatusSummary struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	NextSteps  []string `json:"next_steps"`
}

func (r *StatusSummary) validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("%w: summary is empty", ErrBadResponse)
	}
	return nil
}

type Risk struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Likelihood  string  `json:"likelihood"`
	Impact      string  `json:"impact"`
	Mitigation  string  `json:"mitigation"`
	TaskIDs     []int64 `json:"task_ids,omitempty"`
}

type RiskReport struct {
	Risks []Risk `json:"risks"`
}

func (r *RiskReport) validate() error {
	for i := range r.Risks {
		risk := &r.Risks[i]
		if strings.TrimSpace(risk.Title) == "" {
			return fmt.Errorf("%w: risk %d has no title", ErrBadResponse, i)
		}
		var ok bool
		if risk.Likelihood, ok = normalizeLevel(risk.Likelihood); !ok {
			return fmt.Errorf("%w: risk %d has invalid likelihood", ErrBadResponse, i)
		}
		if risk.Impact, ok = normalizeLevel(risk.Impact); !ok {
			return fmt.Errorf("%w: risk %d has invalid impact", ErrBadResponse, i)
		}
	}
	return nil
}

type LessonsLearned struct {
	WentWell        []string `json:"went_well"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
}

func (r *LessonsLearned) validate() error {
	if len(r.WentWell)+len(r.Improvements)+len(r.Recommendations) == 0 {
		return fmt.Errorf("%w: lessons learned is empty", ErrBadResponse)
	}
	return nil
}

// CriticalPath 模型给出的关键路径。DroppedIDs 为模型返回但不在任务列表中的 id。
type CriticalPath struct {
	TaskIDs     []int64 `json:"task_ids"`
	Explanation string  `json:"explanation"`
	DroppedIDs  []int64 `json:"dropped_ids,omitempty"`
}

func (r *CriticalPath) validate() error {
	if strings.TrimSpace(r.Explanation) == "" {
		return fmt.Errorf("%w: explanation is empty", ErrBadResponse)
	}
	return nil
}

type ProjectHealth struct {
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Health    string `json:"health"`
	Note      string `json:"note"`
}

type PortfolioSummary struct {
	Summary  string          `json:"summary"`
	Projects []ProjectHealth `json:"projects"`
}

func (r *PortfolioSummary) validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("%w: summary is empty", ErrBadResponse)
	}
	for i := range r.Projects {
		h := strings.ToLower(strings.TrimSpace(r.Projects[i].Health))
		switch h {
		case HealthOnTrack, HealthAtRisk, HealthOffTrack:
			r.Projects[i].Health = h
		default:
			return fmt.Errorf("%w: project %d has invalid health", ErrBadResponse, r.Projects[i].ProjectID)
		}
	}
	return nil
}

func normalizeLevel(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case RiskLow, RiskMedium, RiskHigh:
		return v, true
	}
	return v, false
}
