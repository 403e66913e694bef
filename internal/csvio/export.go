// Package csvio 任务的 CSV 导入导出
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"projectflow/internal/model"
)

// DateLayout 导出使用的日期格式
const DateLayout = "2006-01-02"

// Export 按给定顺序写出任务。emails 为 assignee_id 到邮箱的映射。
func Export(w io.Writer, tasks []model.Task, cfg model.ProjectConfig, emails map[int64]string) error {
	cw := csv.NewWriter(w)

	header := append([]string{}, ExportColumns...)
	for _, f := range cfg.CustomFields {
		header = append(header, f.Key)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range tasks {
		t := &tasks[i]
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Name,
			t.Description,
			assigneeEmail(t, emails),
			t.Status,
			t.Priority,
			strconv.Itoa(t.Progress),
			formatDate(t.PlannedStart),
			formatDate(t.PlannedEnd),
			formatDate(t.ActualStart),
			formatDate(t.ActualEnd),
			formatFloat(t.PlannedEffortHours),
			formatFloat(t.ActualEffortHours),
			joinIDs(t.Dependencies),
			formatOptionalID(t.ParentID),
			strconv.FormatBool(t.IsMilestone),
			strconv.FormatBool(t.IsCritical),
		}
		for _, f := range cfg.CustomFields {
			record = append(record, formatValue(t.CustomFields[f.Key]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for task %d: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func assigneeEmail(t *model.Task, emails map[int64]string) string {
	if t.AssigneeID == nil {
		return ""
	}
	if t.Assignee != nil && t.Assignee.Email != "" {
		return t.Assignee.Email
	}
	return emails[*t.AssigneeID]
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ";")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
