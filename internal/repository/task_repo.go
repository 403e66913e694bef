package repository

import (
	"context"
	"fmt"

	"projectflow/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskSelect = `
        SELECT t.id, t.project_id, t.name, t.description, t.assignee_id, u.name, u.email,
               t.status, t.priority, t.progress,
               t.planned_start, t.planned_end, t.actual_start, t.actual_end,
               t.planned_effort_hours, t.actual_effort_hours, t.dependencies, t.parent_id,
               t.is_milestone, t.is_critical, t.attachments, t.custom_fields, t.position,
               t.created_at, t.updated_at
        FROM tasks t
        LEFT JOIN users u ON u.id = t.assignee_id
`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var assigneeName, assigneeEmail *string
	if err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Name,
		&t.Description,
		&t.AssigneeID,
		&assigneeName,
		&assigneeEmail,
		&t.Status,
		&t.Priority,
		&t.Progress,
		&t.PlannedStart,
		&t.PlannedEnd,
		&t.ActualStart,
		&t.ActualEnd,
		&t.PlannedEffortHours,
		&t.ActualEffortHours,
		&t.Dependencies,
		&t.ParentID,
		&t.IsMilestone,
		&t.IsCritical,
		&t.Attachments,
		&t.CustomFields,
		&t.Position,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	if t.AssigneeID != nil && assigneeName != nil {
		t.Assignee = &model.UserRef{ID: *t.AssigneeID, Name: *assigneeName, Email: derefString(assigneeEmail)}
	}
	normalizeTask(&t)
	return &t, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeTask 保证集合字段非 nil，NOT NULL 列和 JSON 输出都依赖这一点
func normalizeTask(t *model.Task) {
	if t.Dependencies == nil {
		t.Dependencies = []int64{}
	}
	if t.Attachments == nil {
		t.Attachments = []model.Attachment{}
	}
	if t.CustomFields == nil {
		t.CustomFields = map[string]any{}
	}
}

// Insert 新任务追加到项目末尾
func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.Int64("project_id", t.ProjectID),
		zap.String("name", t.Name),
	)

	normalizeTask(t)
	query := `
        INSERT INTO tasks (project_id, name, description, assignee_id, status, priority, progress,
                           planned_start, planned_end, actual_start, actual_end,
                           planned_effort_hours, actual_effort_hours, dependencies, parent_id,
                           is_milestone, is_critical, attachments, custom_fields, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
                (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE project_id = $1))
        RETURNING id, position, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.ProjectID,
		t.Name,
		t.Description,
		t.AssigneeID,
		t.Status,
		t.Priority,
		t.Progress,
		t.PlannedStart,
		t.PlannedEnd,
		t.ActualStart,
		t.ActualEnd,
		t.PlannedEffortHours,
		t.ActualEffortHours,
		t.Dependencies,
		t.ParentID,
		t.IsMilestone,
		t.IsCritical,
		t.Attachments,
		t.CustomFields,
	).Scan(&t.ID, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task", zap.Error(err))
		return translate(err)
	}

	r.logger.Info("Task inserted successfully",
		zap.Int64("id", t.ID),
		zap.Int64("project_id", t.ProjectID),
	)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*model.Task, error) {
	return scanTask(r.db.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
}

// ListByProject 按 position 排序
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int64) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, taskSelect+` WHERE t.project_id = $1 ORDER BY t.position ASC, t.id ASC`, projectID)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update 在同一事务中覆盖任务并追加变更历史
func (r *TaskRepository) Update(ctx context.Context, t *model.Task, changes []model.TaskChange) error {
	normalizeTask(t)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
        UPDATE tasks
        SET name = $2, description = $3, assignee_id = $4, status = $5, priority = $6, progress = $7,
            planned_start = $8, planned_end = $9, actual_start = $10, actual_end = $11,
            planned_effort_hours = $12, actual_effort_hours = $13, dependencies = $14, parent_id = $15,
            is_milestone = $16, is_critical = $17, attachments = $18, custom_fields = $19, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `,
		t.ID,
		t.Name,
		t.Description,
		t.AssigneeID,
		t.Status,
		t.Priority,
		t.Progress,
		t.PlannedStart,
		t.PlannedEnd,
		t.ActualStart,
		t.ActualEnd,
		t.PlannedEffortHours,
		t.ActualEffortHours,
		t.Dependencies,
		t.ParentID,
		t.IsMilestone,
		t.IsCritical,
		t.Attachments,
		t.CustomFields,
	).Scan(&t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Int64("id", t.ID), zap.Error(err))
		return translate(err)
	}

	for i := range changes {
		c := &changes[i]
		err := tx.QueryRow(ctx, `
            INSERT INTO task_changes (task_id, field, old_value, new_value, user_id, justification)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, changed_at
        `, t.ID, c.Field, c.OldValue, c.NewValue, c.UserID, c.Justification).Scan(&c.ID, &c.ChangedAt)
		if err != nil {
			r.logger.Error("Failed to insert task change", zap.Int64("task_id", t.ID), zap.String("field", c.Field), zap.Error(err))
			return err
		}
		c.TaskID = t.ID
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit task update: %w", err)
	}

	r.logger.Info("Task updated",
		zap.Int64("id", t.ID),
		zap.Int("changes", len(changes)),
	)
	return nil
}

// UpdateRefs 只修改依赖和父任务，用于导入的第二遍
func (r *TaskRepository) UpdateRefs(ctx context.Context, id int64, dependencies []int64, parentID *int64) error {
	if dependencies == nil {
		dependencies = []int64{}
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE tasks SET dependencies = $2, parent_id = $3, updated_at = NOW() WHERE id = $1
    `, id, dependencies, parentID)
	if err != nil {
		r.logger.Error("Failed to update task refs", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除任务；子任务变为根任务，并从其它任务的依赖列表中移除
func (r *TaskRepository) Delete(ctx context.Context, projectID, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE tasks SET parent_id = NULL, updated_at = NOW() WHERE parent_id = $1`, id); err != nil {
		return fmt.Errorf("failed to detach children: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        UPDATE tasks SET dependencies = array_remove(dependencies, $2::bigint), updated_at = NOW()
        WHERE project_id = $1 AND $2 = ANY(dependencies)
    `, projectID, id); err != nil {
		return fmt.Errorf("failed to remove dependency references: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit task delete: %w", err)
	}
	r.logger.Info("Task deleted", zap.Int64("id", id), zap.Int64("project_id", projectID))
	return nil
}

// Reorder 按给定顺序设置 position，不属于该项目的 id 被忽略
func (r *TaskRepository) Reorder(ctx context.Context, projectID int64, orderedIDs []int64) error {
	_, err := r.db.Exec(ctx, `
        UPDATE tasks
        SET position = v.pos - 1, updated_at = NOW()
        FROM unnest($2::bigint[]) WITH ORDINALITY AS v(id, pos)
        WHERE tasks.id = v.id AND tasks.project_id = $1
    `, projectID, orderedIDs)
	if err != nil {
		r.logger.Error("Failed to reorder tasks", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	r.logger.Info("Tasks reordered", zap.Int64("project_id", projectID), zap.Int("count", len(orderedIDs)))
	return nil
}

// SetCritical 给定 id 标记为关键任务，其余清除。
// 只更新标记确实变化的任务，并在同一条语句中为每个变化写入 is_critical 变更历史。
func (r *TaskRepository) SetCritical(ctx context.Context, projectID int64, criticalIDs []int64, userID int64, justification string) error {
	if criticalIDs == nil {
		criticalIDs = []int64{}
	}
	tag, err := r.db.Exec(ctx, `
        WITH flipped AS (
            UPDATE tasks SET is_critical = (id = ANY($2)), updated_at = NOW()
            WHERE project_id = $1 AND is_critical <> (id = ANY($2))
            RETURNING id, is_critical
        )
        INSERT INTO task_changes (task_id, field, old_value, new_value, user_id, justification)
        SELECT id, 'is_critical', (NOT is_critical)::text, is_critical::text, $3, $4
        FROM flipped
    `, projectID, criticalIDs, userID, justification)
	if err != nil {
		r.logger.Error("Failed to set critical flags", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	r.logger.Info("Critical flags updated",
		zap.Int64("project_id", projectID),
		zap.Int64("changed", tag.RowsAffected()),
	)
	return nil
}

func (r *TaskRepository) ListChanges(ctx context.Context, taskID int64) ([]model.TaskChange, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, task_id, field, old_value, new_value, user_id, justification, changed_at
        FROM task_changes
        WHERE task_id = $1
        ORDER BY changed_at ASC, id ASC
    `, taskID)
	if err != nil {
		r.logger.Error("Failed to list task changes", zap.Int64("task_id", taskID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	changes := make([]model.TaskChange, 0)
	for rows.Next() {
		var c model.TaskChange
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Field, &c.OldValue, &c.NewValue, &c.UserID, &c.Justification, &c.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
