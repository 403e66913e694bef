package service

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"projectflow/internal/model"
)

var chartTypes = map[string]bool{"bar": true, "line": true, "pie": true}

var fieldTypes = map[string]bool{
	model.FieldTypeText:   true,
	model.FieldTypeNumber: true,
	model.FieldTypeDate:   true,
	model.FieldTypeSelect: true,
}

// ValidateConfig 校验并规范化项目配置（去空格、补默认状态、补 id）
func ValidateConfig(cfg *model.ProjectConfig) error {
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = model.DefaultStatuses()
	}
	seenStatus := map[string]bool{}
	for i := range cfg.Statuses {
		s := &cfg.Statuses[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return wrapf(ErrInvalidConfig, "status %d has no name", i)
		}
		if seenStatus[s.Name] {
			return wrapf(ErrInvalidConfig, "duplicate status %q", s.Name)
		}
		seenStatus[s.Name] = true
	}

	seenField := map[string]bool{}
	for i := range cfg.CustomFields {
		f := &cfg.CustomFields[i]
		f.Key = strings.TrimSpace(f.Key)
		if f.Key == "" {
			return wrapf(ErrInvalidConfig, "custom field %d has no key", i)
		}
		lower := strings.ToLower(f.Key)
		if seenField[lower] {
			return wrapf(ErrInvalidConfig, "duplicate custom field %q", f.Key)
		}
		seenField[lower] = true
		if f.Type == "" {
			f.Type = model.FieldTypeText
		}
		if !fieldTypes[f.Type] {
			return wrapf(ErrInvalidConfig, "custom field %q has unknown type %q", f.Key, f.Type)
		}
		if f.Type == model.FieldTypeSelect && len(f.Options) == 0 {
			return wrapf(ErrInvalidConfig, "select field %q needs options", f.Key)
		}
		if f.Label == "" {
			f.Label = f.Key
		}
	}

	for i := range cfg.CustomCharts {
		c := &cfg.CustomCharts[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if !chartTypes[c.Type] {
			return wrapf(ErrInvalidConfig, "chart %q has unknown type %q", c.Title, c.Type)
		}
		if strings.TrimSpace(c.Metric) == "" {
			return wrapf(ErrInvalidConfig, "chart %q has no metric", c.Title)
		}
	}

	for i := range cfg.AlertRules {
		r := &cfg.AlertRules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if !r.ValidPair() {
			return wrapf(ErrInvalidConfig, "alert rule %q: %s/%s is not a supported combination", r.Label, r.Metric, r.Condition)
		}
		r.Value = strings.TrimSpace(r.Value)
		switch r.Metric {
		case model.MetricTaskStatus:
			if !seenStatus[r.Value] {
				return wrapf(ErrInvalidConfig, "alert rule %q references unknown status %q", r.Label, r.Value)
			}
		case model.MetricTaskPriority:
			if !model.ValidPriority(strings.ToLower(r.Value)) {
				return wrapf(ErrInvalidConfig, "alert rule %q references unknown priority %q", r.Label, r.Value)
			}
		case model.MetricBudgetUsage:
			if _, err := strconv.ParseFloat(r.Value, 64); err != nil {
				return wrapf(ErrInvalidConfig, "alert rule %q threshold %q is not a number", r.Label, r.Value)
			}
		}
		if r.Label == "" {
			r.Label = r.Metric
		}
	}

	return nil
}
