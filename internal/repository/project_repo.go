package repository

import (
	"context"

	"projectflow/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectSelect = `
        SELECT p.id, p.name, p.description, p.manager_id, m.name, m.email,
               p.planned_start, p.planned_end, p.actual_start, p.actual_end,
               p.planned_budget, p.actual_cost, p.kpis, p.config, p.created_at, p.updated_at
        FROM projects p
        JOIN users m ON m.id = p.manager_id
`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	manager := model.UserRef{}
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.ManagerID,
		&manager.Name,
		&manager.Email,
		&p.PlannedStart,
		&p.PlannedEnd,
		&p.ActualStart,
		&p.ActualEnd,
		&p.PlannedBudget,
		&p.ActualCost,
		&p.KPIs,
		&p.Config,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	manager.ID = p.ManagerID
	p.Manager = &manager
	if p.KPIs == nil {
		p.KPIs = map[string]any{}
	}
	p.Team = []model.TeamMember{}
	return &p, nil
}

func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.String("name", p.Name),
		zap.Int64("manager_id", p.ManagerID),
	)

	if p.KPIs == nil {
		p.KPIs = map[string]any{}
	}
	query := `
        INSERT INTO projects (name, description, manager_id, planned_start, planned_end, actual_start, actual_end,
                              planned_budget, actual_cost, kpis, config)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.ManagerID,
		p.PlannedStart,
		p.PlannedEnd,
		p.ActualStart,
		p.ActualEnd,
		p.PlannedBudget,
		p.ActualCost,
		p.KPIs,
		p.Config,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return translate(err)
	}

	r.logger.Info("Project inserted successfully", zap.Int64("id", p.ID))
	return nil
}

// FindByID 返回项目及其团队，不含任务
func (r *ProjectRepository) FindByID(ctx context.Context, id int64) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachTeams(ctx, []*model.Project{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// List 返回全部项目（管理员视图）
func (r *ProjectRepository) List(ctx context.Context) ([]*model.Project, error) {
	return r.query(ctx, projectSelect+` ORDER BY p.created_at DESC, p.id DESC`)
}

// ListForUser 用户作为经理或团队成员参与的项目
func (r *ProjectRepository) ListForUser(ctx context.Context, userID int64) ([]*model.Project, error) {
	return r.query(ctx, projectSelect+`
        WHERE p.manager_id = $1
           OR EXISTS (SELECT 1 FROM project_team t WHERE t.project_id = p.id AND t.user_id = $1)
        ORDER BY p.created_at DESC, p.id DESC`, userID)
}

func (r *ProjectRepository) query(ctx context.Context, sql string, args ...any) ([]*model.Project, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	projects := make([]*model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project", zap.Error(err))
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachTeams(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) attachTeams(ctx context.Context, projects []*model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Project, len(projects))
	ids := make([]int64, 0, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.Query(ctx, `
        SELECT t.project_id, u.id, u.name, u.email, t.role
        FROM project_team t
        JOIN users u ON u.id = t.user_id
        WHERE t.project_id = ANY($1)
        ORDER BY u.name ASC
    `, ids)
	if err != nil {
		r.logger.Error("Failed to load project teams", zap.Error(err))
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var projectID int64
		var m model.TeamMember
		if err := rows.Scan(&projectID, &m.User.ID, &m.User.Name, &m.User.Email, &m.Role); err != nil {
			return err
		}
		if p, ok := byID[projectID]; ok {
			p.Team = append(p.Team, m)
		}
	}
	return rows.Err()
}

// Update 覆盖基础字段（最后写入者生效）
func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE projects
        SET name = $2, description = $3, manager_id = $4,
            planned_start = $5, planned_end = $6, actual_start = $7, actual_end = $8,
            planned_budget = $9, actual_cost = $10, updated_at = NOW()
        WHERE id = $1
    `,
		p.ID,
		p.Name,
		p.Description,
		p.ManagerID,
		p.PlannedStart,
		p.PlannedEnd,
		p.ActualStart,
		p.ActualEnd,
		p.PlannedBudget,
		p.ActualCost,
	)
	if err != nil {
		r.logger.Error("Failed to update project", zap.Int64("id", p.ID), zap.Error(err))
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Project updated", zap.Int64("id", p.ID))
	return nil
}

func (r *ProjectRepository) UpdateConfig(ctx context.Context, id int64, cfg model.ProjectConfig) error {
	return r.exec(ctx, "config", `UPDATE projects SET config = $2, updated_at = NOW() WHERE id = $1`, id, cfg)
}

func (r *ProjectRepository) UpdateKPIs(ctx context.Context, id int64, kpis map[string]any) error {
	if kpis == nil {
		kpis = map[string]any{}
	}
	return r.exec(ctx, "kpis", `UPDATE projects SET kpis = $2, updated_at = NOW() WHERE id = $1`, id, kpis)
}

func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete", `DELETE FROM projects WHERE id = $1`, id)
}

func (r *ProjectRepository) exec(ctx context.Context, op, sql string, id int64, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		r.logger.Error("Project statement failed", zap.String("op", op), zap.Int64("id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Project statement applied", zap.String("op", op), zap.Int64("id", id))
	return nil
}

// UpsertMember 添加成员或修改其角色，返回是否为新成员
func (r *ProjectRepository) UpsertMember(ctx context.Context, projectID, userID int64, role string) (bool, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, `
        INSERT INTO project_team (project_id, user_id, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING (xmax = 0)
    `, projectID, userID, role).Scan(&inserted)
	if err != nil {
		r.logger.Error("Failed to upsert team member",
			zap.Int64("project_id", projectID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return false, translate(err)
	}
	return inserted, nil
}

func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM project_team WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		r.logger.Error("Failed to remove team member", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
