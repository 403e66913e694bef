// Package alert 根据项目配置的告警规则，对项目当前状态做一次无状态评估
package alert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"projectflow/internal/model"
)

// Evaluate 对项目当前状态执行全部规则。
// 结果按规则顺序、任务顺序排列，同一次评估内按 message 完全相同去重（保留第一次出现）。
func Evaluate(project *model.Project, tasks []model.Task, now time.Time) []model.ActiveAlert {
	alerts := make([]model.ActiveAlert, 0)
	seen := make(map[string]struct{})

	emit := func(rule model.AlertRule, message string, taskID *int64) {
		if _, dup := seen[message]; dup {
			return
		}
		seen[message] = struct{}{}
		alerts = append(alerts, model.ActiveAlert{
			ID:          uuid.NewString(),
			RuleID:      rule.ID,
			Label:       rule.Label,
			Metric:      rule.Metric,
			Message:     message,
			TaskID:      taskID,
			TriggeredAt: now,
		})
	}

	today := startOfDay(now)

	for _, rule := range project.Config.AlertRules {
		if !rule.ValidPair() {
			continue
		}

		switch rule.Metric {
		case model.MetricTaskStatus:
			// 注意：检查的是当前状态，而不是状态变化
			for i := range tasks {
				t := &tasks[i]
				if t.Status == rule.Value {
					emit(rule, fmt.Sprintf("Task %q is in status %q", t.Name, t.Status), &t.ID)
				}
			}

		case model.MetricTaskPriority:
			for i := range tasks {
				t := &tasks[i]
				if strings.EqualFold(t.Priority, rule.Value) {
					emit(rule, fmt.Sprintf("Task %q has priority %q", t.Name, t.Priority), &t.ID)
				}
			}

		case model.MetricTaskOverdue:
			for i := range tasks {
				t := &tasks[i]
				if isOverdue(t, project.Config, today) {
					emit(rule, fmt.Sprintf("Task %q is overdue (planned end %s)", t.Name, t.PlannedEnd.Format("2006-01-02")), &t.ID)
				}
			}

		case model.MetricBudgetUsage:
			threshold, err := strconv.ParseFloat(strings.TrimSpace(rule.Value), 64)
			if err != nil || math.IsNaN(threshold) {
				continue
			}
			usage, ok := BudgetUsage(project.PlannedBudget, project.ActualCost)
			if ok && usage > threshold {
				emit(rule, fmt.Sprintf("Budget usage is %.1f%% (threshold %g%%)", usage, threshold), nil)
			}
		}
	}

	return alerts
}

// BudgetUsage 已用成本占计划预算的百分比；预算为 0、负数或非有限值时返回 false
func BudgetUsage(plannedBudget, actualCost float64) (float64, bool) {
	if plannedBudget <= 0 || math.IsNaN(plannedBudget) || math.IsInf(plannedBudget, 0) {
		return 0, false
	}
	usage := actualCost / plannedBudget * 100
	if math.IsNaN(usage) || math.IsInf(usage, 0) {
		return 0, false
	}
	return usage, true
}

// IsOverdue 计划结束日期早于今天且状态不是完成状态
func IsOverdue(t *model.Task, cfg model.ProjectConfig, now time.Time) bool {
	return isOverdue(t, cfg, startOfDay(now))
}

func isOverdue(t *model.Task, cfg model.ProjectConfig, today time.Time) bool {
	if t.PlannedEnd == nil {
		return false
	}
	if cfg.IsCompletedStatus(t.Status) {
		return false
	}
	return t.PlannedEnd.UTC().Before(today)
}

// startOfDay 返回 now 所在日历日的 UTC 零点。计划日期来自 DATE 列，按 UTC 零点扫描，
// 因此只比较日历日，不受服务器时区影响。
func startOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
