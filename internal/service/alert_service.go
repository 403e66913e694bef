package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/alert"
	"projectflow/internal/model"
	"projectflow/pkg/metrics"
	"projectflow/pkg/rbac"
)

type AlertService struct {
	projects ProjectStore
	tasks    TaskStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewAlertService(projects ProjectStore, tasks TaskStore, logger *zap.Logger) *AlertService {
	return &AlertService{projects: projects, tasks: tasks, logger: logger, now: time.Now}
}

// Evaluate 按项目当前状态评估告警规则，结果不持久化
func (s *AlertService) Evaluate(ctx context.Context, actor Actor, projectID int64) ([]model.ActiveAlert, error) {
	p, err := loadProject(ctx, s.projects, actor, projectID, rbac.PermissionReadProject)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	alerts := alert.Evaluate(p, tasks, s.now())

	counts := make(map[string]int)
	for _, a := range alerts {
		counts[a.Metric]++
	}
	for m, n := range counts {
		metrics.AddAlertsRaised(m, n)
	}

	s.logger.Debug("Alerts evaluated",
		zap.Int64("project_id", projectID),
		zap.Int("rules", len(p.Config.AlertRules)),
		zap.Int("alerts", len(alerts)))
	return alerts, nil
}
