// Package tasktree 把按 parent_id 关联的扁平任务列表还原成树，并提供递归过滤与进度汇总
package tasktree

import (
	"strings"

	"projectflow/internal/model"
)

type Node struct {
	Task     model.Task `json:"task"`
	Children []*Node    `json:"children"`
}

// Build 单次遍历建树。parent 能在集合中找到的挂为子节点，否则为根。
// 输入顺序保留。parent 链成环的任务永远不会成为根，因此不会出现在结果中。
func Build(tasks []model.Task) []*Node {
	nodes := make(map[int64]*Node, len(tasks))
	ordered := make([]*Node, 0, len(tasks))
	for _, t := range tasks {
		n := &Node{Task: t, Children: []*Node{}}
		nodes[t.ID] = n
		ordered = append(ordered, n)
	}

	roots := make([]*Node, 0)
	for _, n := range ordered {
		if n.Task.ParentID != nil {
			if parent, ok := nodes[*n.Task.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// Criteria 过滤条件，空字段表示不过滤
type Criteria struct {
	Name   string
	Status string
}

func (c Criteria) empty() bool {
	return c.Name == "" && c.Status == ""
}

func (c Criteria) matches(t model.Task) bool {
	if c.Name != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(c.Name)) {
		return false
	}
	if c.Status != "" && t.Status != c.Status {
		return false
	}
	return true
}

// Filter 递归过滤：节点自身匹配或任一后代在过滤后仍存在时保留，子节点裁剪为过滤后的子集。
// 返回新节点，不修改输入。
func Filter(nodes []*Node, c Criteria) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if kept := filterNode(n, c); kept != nil {
			out = append(out, kept)
		}
	}
	return out
}

func filterNode(n *Node, c Criteria) *Node {
	children := Filter(n.Children, c)
	if c.empty() || c.matches(n.Task) || len(children) > 0 {
		return &Node{Task: n.Task, Children: children}
	}
	return nil
}

// Completion 项目完成度：所有任务进度的平均值，无任务时为 0
func Completion(tasks []model.Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	total := 0
	for _, t := range tasks {
		total += clampProgress(t.Progress)
	}
	return float64(total) / float64(len(tasks))
}

// RollupProgress 叶子取自身进度，父节点取子节点汇总进度的平均值
func RollupProgress(n *Node) float64 {
	if len(n.Children) == 0 {
		return float64(clampProgress(n.Task.Progress))
	}
	sum := 0.0
	for _, child := range n.Children {
		sum += RollupProgress(child)
	}
	return sum / float64(len(n.Children))
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// FlatNode 深度优先展开后的节点
type FlatNode struct {
	Task  model.Task
	Depth int
}

// Flatten 深度优先展开，用于列表视图和导出
func Flatten(nodes []*Node) []FlatNode {
	var out []FlatNode
	var walk func(ns []*Node, depth int)
	walk = func(ns []*Node, depth int) {
		for _, n := range ns {
			out = append(out, FlatNode{Task: n.Task, Depth: depth})
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return out
}

// CreatesParentCycle 把 taskID 的父节点设为 parentID 是否会形成环
func CreatesParentCycle(tasks []model.Task, taskID, parentID int64) bool {
	parents := make(map[int64]*int64, len(tasks))
	for _, t := range tasks {
		parents[t.ID] = t.ParentID
	}

	seen := map[int64]bool{}
	cur := parentID
	for {
		if cur == taskID {
			return true
		}
		if seen[cur] {
			// 已有的环与本次修改无关
			return false
		}
		seen[cur] = true
		next, ok := parents[cur]
		if !ok || next == nil {
			return false
		}
		cur = *next
	}
}

// CreatesDependencyCycle 让 taskID 依赖 deps 后，是否能沿依赖链回到 taskID
func CreatesDependencyCycle(tasks []model.Task, taskID int64, deps []int64) bool {
	graph := make(map[int64][]int64, len(tasks))
	for _, t := range tasks {
		graph[t.ID] = t.Dependencies
	}
	graph[taskID] = deps

	seen := map[int64]bool{}
	stack := append([]int64{}, deps...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == taskID {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, graph[cur]...)
	}
	return false
}
