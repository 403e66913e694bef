package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"projectflow/internal/model"
)

// PreviewRows 预览返回的数据行数
const PreviewRows = 5

// MaxImportRows 单次导入的最大数据行数
const MaxImportRows = 5000

var (
	ErrEmptyFile     = errors.New("csv file is empty")
	ErrTooManyRows   = errors.New("csv file has too many rows")
	ErrInvalidTarget = errors.New("invalid mapping target")
	ErrNameUnmapped  = errors.New("no column is mapped to name")
)

var dateLayouts = []string{DateLayout, "02/01/2006", time.RFC3339}

// Preview 预览结果
type Preview struct {
	Headers []string          `json:"headers"`
	Rows    [][]string        `json:"rows"`
	Mapping map[string]string `json:"suggested_mapping"`
}

// RowError 某一行的解析错误，Row 为文件中的行号（表头为第 1 行）
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ImportRow 解析后的一行。引用类字段保留原始 token，由 Resolver 在第二遍解析。
type ImportRow struct {
	Row              int
	SourceID         string
	Task             model.Task
	AssigneeEmail    string
	DependencyTokens []string
	ParentToken      string
}

// ImportPlan 解析结果
type ImportPlan struct {
	Rows            []ImportRow
	Errors          []RowError
	NewCustomFields []model.CustomField
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	if len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return records, nil
}

// BuildPreview 读取表头和前几行，并给出建议映射
func BuildPreview(r io.Reader, cfg model.ProjectConfig) (*Preview, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}

	headers := records[0]
	rows := records[1:]
	if len(rows) > PreviewRows {
		rows = rows[:PreviewRows]
	}

	mapping := make(map[string]string, len(headers))
	used := make(map[string]bool)
	for _, h := range headers {
		target := SuggestTarget(h, cfg)
		if target != "" && used[target] {
			target = ""
		}
		if target != "" {
			used[target] = true
		}
		mapping[h] = target
	}

	return &Preview{Headers: headers, Rows: rows, Mapping: mapping}, nil
}

// Parse 按映射解析全部数据行。单行错误收集在 Errors 中，不影响其它行；
// 映射本身不合法时直接返回错误。
func Parse(r io.Reader, mapping map[string]string, cfg model.ProjectConfig) (*ImportPlan, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records)-1 > MaxImportRows {
		return nil, ErrTooManyRows
	}

	headers := records[0]
	targets := make([]string, len(headers))
	seenTarget := make(map[string]string)
	plan := &ImportPlan{}
	fieldTypes := make(map[string]string)
	hasName := false

	for i, h := range headers {
		target := strings.TrimSpace(mapping[h])
		if target == "" {
			continue
		}
		if prev, dup := seenTarget[target]; dup {
			return nil, fmt.Errorf("%w: %q is mapped by both %q and %q", ErrInvalidTarget, target, prev, h)
		}
		seenTarget[target] = h

		if key, ok := CustomKey(target); ok {
			if f, exists := cfg.FindCustomField(key); exists {
				fieldTypes[f.Key] = f.Type
				target = CustomPrefix + f.Key
			} else {
				fieldTypes[key] = model.FieldTypeText
				plan.NewCustomFields = append(plan.NewCustomFields, model.CustomField{
					Key:   key,
					Label: strings.TrimSpace(h),
					Type:  model.FieldTypeText,
				})
			}
		} else if !IsKnownField(target) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
		if target == FieldName {
			hasName = true
		}
		targets[i] = target
	}
	if !hasName {
		return nil, ErrNameUnmapped
	}

	for idx, record := range records[1:] {
		rowNum := idx + 2
		if isBlank(record) {
			continue
		}
		row, rowErrs := parseRow(rowNum, record, headers, targets, fieldTypes)
		if len(rowErrs) > 0 {
			plan.Errors = append(plan.Errors, rowErrs...)
			continue
		}
		plan.Rows = append(plan.Rows, row)
	}

	return plan, nil
}

func parseRow(rowNum int, record, headers, targets []string, fieldTypes map[string]string) (ImportRow, []RowError) {
	row := ImportRow{Row: rowNum}
	var errs []RowError
	fail := func(col, msg string) {
		errs = append(errs, RowError{Row: rowNum, Column: col, Message: msg})
	}

	for i, target := range targets {
		if target == "" || i >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[i])
		col := headers[i]

		if key, ok := CustomKey(target); ok {
			if raw == "" {
				continue
			}
			v, err := parseCustomValue(raw, fieldTypes[key])
			if err != nil {
				fail(col, err.Error())
				continue
			}
			if row.Task.CustomFields == nil {
				row.Task.CustomFields = make(map[string]any)
			}
			row.Task.CustomFields[key] = v
			continue
		}

		switch target {
		case FieldID:
			row.SourceID = raw
		case FieldName:
			row.Task.Name = raw
		case FieldDescription:
			row.Task.Description = raw
		case FieldAssigneeEmail:
			row.AssigneeEmail = strings.ToLower(raw)
		case FieldStatus:
			row.Task.Status = raw
		case FieldPriority:
			row.Task.Priority = strings.ToLower(raw)
		case FieldProgress:
			p, err := parseProgress(raw)
			if err != nil {
				fail(col, err.Error())
			}
			row.Task.Progress = p
		case FieldPlannedStart, FieldPlannedEnd, FieldActualStart, FieldActualEnd:
			d, err := ParseDate(raw)
			if err != nil {
				fail(col, err.Error())
				continue
			}
			switch target {
			case FieldPlannedStart:
				row.Task.PlannedStart = d
			case FieldPlannedEnd:
				row.Task.PlannedEnd = d
			case FieldActualStart:
				row.Task.ActualStart = d
			case FieldActualEnd:
				row.Task.ActualEnd = d
			}
		case FieldPlannedEffortHours, FieldActualEffortHours:
			h, err := parseNumber(raw)
			if err != nil {
				fail(col, err.Error())
				continue
			}
			if target == FieldPlannedEffortHours {
				row.Task.PlannedEffortHours = h
			} else {
				row.Task.ActualEffortHours = h
			}
		case FieldDependencies:
			row.DependencyTokens = splitTokens(raw)
		case FieldParentID:
			row.ParentToken = raw
		case FieldIsMilestone, FieldIsCritical:
			b, err := parseBool(raw)
			if err != nil {
				fail(col, err.Error())
				continue
			}
			if target == FieldIsMilestone {
				row.Task.IsMilestone = b
			} else {
				row.Task.IsCritical = b
			}
		}
	}

	if row.Task.Name == "" {
		fail("", "name is required")
	}
	return row, errs
}

// ParseDate 解析日期，空字符串返回 nil
func ParseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}

func parseNumber(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	s := raw
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}

func parseProgress(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := parseNumber(strings.TrimSuffix(raw, "%"))
	if err != nil {
		return 0, err
	}
	p := int(math.Round(v))
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("progress %q out of range 0..100", raw)
	}
	return p, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "", "0", "false", "no", "n", "nao", "não":
		return false, nil
	case "1", "true", "yes", "y", "x", "sim", "s":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func parseCustomValue(raw, fieldType string) (any, error) {
	switch fieldType {
	case model.FieldTypeNumber:
		return parseNumber(raw)
	case model.FieldTypeDate:
		d, err := ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return d.Format(DateLayout), nil
	default:
		return raw, nil
	}
}

func splitTokens(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' || r == '|' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
