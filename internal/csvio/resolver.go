package csvio

import (
	"strconv"
	"strings"

	"projectflow/internal/model"
)

// Resolver 把依赖/父任务 token 解析为任务 id。
// 优先级：本次导入行的源 id，已有任务 id，任务名（忽略大小写，先出现者优先）。
type Resolver struct {
	existing map[int64]struct{}
	bySource map[string]int64
	byName   map[string]int64
}

func NewResolver(existing []model.Task) *Resolver {
	r := &Resolver{
		existing: make(map[int64]struct{}, len(existing)),
		bySource: make(map[string]int64),
		byName:   make(map[string]int64),
	}
	for _, t := range existing {
		r.existing[t.ID] = struct{}{}
		r.addName(t.Name, t.ID)
	}
	return r
}

// AddImported 登记一个已创建的导入任务
func (r *Resolver) AddImported(sourceID, name string, id int64) {
	if sourceID != "" {
		if _, dup := r.bySource[sourceID]; !dup {
			r.bySource[sourceID] = id
		}
	}
	r.existing[id] = struct{}{}
	r.addName(name, id)
}

func (r *Resolver) addName(name string, id int64) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	if _, dup := r.byName[key]; !dup {
		r.byName[key] = id
	}
}

// Resolve 解析 token
func (r *Resolver) Resolve(token string) (int64, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	if id, ok := r.bySource[token]; ok {
		return id, true
	}
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		if _, ok := r.existing[id]; ok {
			return id, true
		}
	}
	id, ok := r.byName[strings.ToLower(token)]
	return id, ok
}
