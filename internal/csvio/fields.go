package csvio

import (
	"strings"

	"projectflow/internal/model"
)

// 可映射的任务字段
const (
	FieldID                 = "id"
	FieldName               = "name"
	FieldDescription        = "description"
	FieldAssigneeEmail      = "assignee_email"
	FieldStatus             = "status"
	FieldPriority           = "priority"
	FieldProgress           = "progress"
	FieldPlannedStart       = "planned_start"
	FieldPlannedEnd         = "planned_end"
	FieldActualStart        = "actual_start"
	FieldActualEnd          = "actual_end"
	FieldPlannedEffortHours = "planned_effort_hours"
	FieldActualEffortHours  = "actual_effort_hours"
	FieldDependencies       = "dependencies"
	FieldParentID           = "parent_id"
	FieldIsMilestone        = "is_milestone"
	FieldIsCritical         = "is_critical"
)

// CustomPrefix 映射到自定义字段的目标前缀，例如 custom:sprint
const CustomPrefix = "custom:"

// ExportColumns 导出文件的固定列，自定义字段列追加在后面
var ExportColumns = []string{
	FieldID, FieldName, FieldDescription, FieldAssigneeEmail, FieldStatus, FieldPriority,
	FieldProgress, FieldPlannedStart, FieldPlannedEnd, FieldActualStart, FieldActualEnd,
	FieldPlannedEffortHours, FieldActualEffortHours, FieldDependencies, FieldParentID,
	FieldIsMilestone, FieldIsCritical,
}

var aliases = map[string]string{
	"title":          FieldName,
	"task":           FieldName,
	"task_name":      FieldName,
	"nome":           FieldName,
	"desc":           FieldDescription,
	"details":        FieldDescription,
	"descricao":      FieldDescription,
	"assignee":       FieldAssigneeEmail,
	"owner":          FieldAssigneeEmail,
	"email":          FieldAssigneeEmail,
	"responsavel":    FieldAssigneeEmail,
	"state":          FieldStatus,
	"percent":        FieldProgress,
	"complete":       FieldProgress,
	"progresso":      FieldProgress,
	"start":          FieldPlannedStart,
	"start_date":     FieldPlannedStart,
	"inicio":         FieldPlannedStart,
	"end":            FieldPlannedEnd,
	"end_date":       FieldPlannedEnd,
	"due":            FieldPlannedEnd,
	"due_date":       FieldPlannedEnd,
	"fim":            FieldPlannedEnd,
	"estimate":       FieldPlannedEffortHours,
	"planned_hours":  FieldPlannedEffortHours,
	"actual_hours":   FieldActualEffortHours,
	"spent":          FieldActualEffortHours,
	"depends_on":     FieldDependencies,
	"predecessors":   FieldDependencies,
	"dependencias":   FieldDependencies,
	"parent":         FieldParentID,
	"milestone":      FieldIsMilestone,
	"critical":       FieldIsCritical,
}

// IsKnownField 目标是否为内置任务字段
func IsKnownField(target string) bool {
	for _, c := range ExportColumns {
		if c == target {
			return true
		}
	}
	return false
}

// CustomKey 解析 custom:<key> 目标
func CustomKey(target string) (string, bool) {
	if !strings.HasPrefix(target, CustomPrefix) {
		return "", false
	}
	key := strings.TrimSpace(strings.TrimPrefix(target, CustomPrefix))
	return key, key != ""
}

// SuggestTarget 根据表头推测映射目标，无法推测时返回空字符串
func SuggestTarget(header string, cfg model.ProjectConfig) string {
	n := normalizeHeader(header)
	if n == "" {
		return ""
	}
	if IsKnownField(n) {
		return n
	}
	if target, ok := aliases[n]; ok {
		return target
	}
	if f, ok := cfg.FindCustomField(n); ok {
		return CustomPrefix + f.Key
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer("%", "", "(", "", ")", "", ".", "").Replace(h)
	h = strings.TrimSpace(h)
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	}), "_")
}
