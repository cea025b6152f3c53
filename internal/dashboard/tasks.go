package dashboard

import (
	"context"
	"sync"
)

// Resource はTaskGroupで管理する非同期処理の種類。
type Resource string

const (
	ResourceEvents  Resource = "events"
	ResourceSave    Resource = "save"
	ResourceWeather Resource = "weather"
	ResourceGeocode Resource = "geocode"
)

// TaskKey はユーザーとリソースの組。同じキーの処理は同時に1つだけ有効となる。
type TaskKey struct {
	User     string
	Resource Resource
}

type task struct {
	token  uint64
	cancel context.CancelFunc
}

// TaskGroup はキーごとに最新の処理だけを有効にする。
// 新しい処理を開始すると同じキーの古い処理のcontextをキャンセルし、
// 古い処理の完了結果はCurrentで破棄を判定できる。
type TaskGroup struct {
	mu      sync.Mutex
	seq     uint64
	running map[TaskKey]task
}

// NewTaskGroup はTaskGroupを生成する。
func NewTaskGroup() *TaskGroup {
	return &TaskGroup{running: make(map[TaskKey]task)}
}

// Start はkeyの新しい処理を登録し、処理用のcontextとトークンを返す。
// 処理が終わったら必ずFinishを呼ぶこと。
func (g *TaskGroup) Start(parent context.Context, key TaskKey) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.running[key]; ok {
		prev.cancel()
	}
	g.seq++
	g.running[key] = task{token: g.seq, cancel: cancel}
	return ctx, g.seq
}

// Current はtokenがkeyの最新の処理かどうかを返す。
func (g *TaskGroup) Current(key TaskKey, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.running[key]
	return ok && t.token == token
}

// Finish はtokenの処理を完了として登録を外す。より新しい処理が登録済みなら何もしない。
func (g *TaskGroup) Finish(key TaskKey, token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.running[key]; ok && t.token == token {
		t.cancel()
		delete(g.running, key)
	}
}

// CancelAll は実行中のすべての処理をキャンセルする。
func (g *TaskGroup) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, t := range g.running {
		t.cancel()
		delete(g.running, key)
	}
}

// Len は実行中の処理数を返す。
func (g *TaskGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
