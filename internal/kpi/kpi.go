// Package kpi 计算项目指标
package kpi

import (
	"math"
	"time"

	"projectflow/internal/alert"
	"projectflow/internal/model"
	"projectflow/internal/tasktree"
)

// 计算得出的指标 key
const (
	KeyCompletionPct       = "completion_pct"
	KeyPlannedBudget       = "planned_budget"
	KeyActualCost          = "actual_cost"
	KeyCostVariance        = "cost_variance"
	KeyBudgetUsagePct      = "budget_usage_pct"
	KeyTaskCount           = "task_count"
	KeyCompletedCount      = "completed_count"
	KeyOverdueCount        = "overdue_count"
	KeyMilestoneCount      = "milestone_count"
	KeyPlannedEffortHours  = "planned_effort_hours"
	KeyActualEffortHours   = "actual_effort_hours"
	KeyEffortVarianceHours = "effort_variance_hours"
)

// Compute 根据项目和任务计算指标。预算为 0 时不输出 budget_usage_pct。
func Compute(project *model.Project, tasks []model.Task, now time.Time) map[string]any {
	out := map[string]any{
		KeyCompletionPct: round2(tasktree.Completion(tasks)),
		KeyPlannedBudget: project.PlannedBudget,
		KeyActualCost:    project.ActualCost,
		KeyCostVariance:  round2(project.PlannedBudget - project.ActualCost),
		KeyTaskCount:     len(tasks),
	}

	if usage, ok := alert.BudgetUsage(project.PlannedBudget, project.ActualCost); ok {
		out[KeyBudgetUsagePct] = round2(usage)
	}

	var completed, overdue, milestones int
	var plannedHours, actualHours float64
	for i := range tasks {
		t := &tasks[i]
		if project.Config.IsCompletedStatus(t.Status) {
			completed++
		}
		if alert.IsOverdue(t, project.Config, now) {
			overdue++
		}
		if t.IsMilestone {
			milestones++
		}
		plannedHours += t.PlannedEffortHours
		actualHours += t.ActualEffortHours
	}

	out[KeyCompletedCount] = completed
	out[KeyOverdueCount] = overdue
	out[KeyMilestoneCount] = milestones
	out[KeyPlannedEffortHours] = round2(plannedHours)
	out[KeyActualEffortHours] = round2(actualHours)
	out[KeyEffortVarianceHours] = round2(plannedHours - actualHours)

	return out
}

// Merge 合并自由格式指标与计算指标，key 冲突时计算值优先
func Merge(freeForm, computed map[string]any) map[string]any {
	out := make(map[string]any, len(freeForm)+len(computed))
	for k, v := range freeForm {
		out[k] = v
	}
	for k, v := range computed {
		out[k] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
