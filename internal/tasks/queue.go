package tasks

import (
	"context"
	"sync"
	"time"

	"wgfleet/internal/logs"
	"wgfleet/internal/models"
)

// TaskLogRepo — журнал статусов задач (опционален).
type TaskLogRepo interface {
	Append(ctx context.Context, kind string, entityID uint, status string, attempts int, details map[string]any) error
}

// Queue — ограниченный FIFO-канал плюс пул воркеров. Постановка
// неблокирующая: переполнение или закрытая очередь — это false, не
// паника и не ожидание (вызывающая сторона логирует и живёт дальше).
// Порядок постановки сохраняется: воркеры снимают задачи из одного
// канала в порядке FIFO.
type Queue struct {
	exec       *Executor
	policies   map[Kind]Policy
	taskLog    TaskLogRepo
	ch         chan Task
	workers    int
	taskBudget time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// sleep подменяется в тестах, чтобы не ждать реальные паузы ретраев.
	sleep func(time.Duration)
}

const defaultTaskBudget = time.Minute

func NewQueue(exec *Executor, capacity, workers int, taskLog TaskLogRepo) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 4
	}
	q := &Queue{
		exec:       exec,
		policies:   DefaultPolicies(),
		taskLog:    taskLog,
		ch:         make(chan Task, capacity),
		workers:    workers,
		taskBudget: defaultTaskBudget,
		sleep:      time.Sleep,
	}
	exec.Enq = q
	return q
}

// SetPolicies переопределяет политики повторов (тесты, тюнинг).
func (q *Queue) SetPolicies(p map[Kind]Policy) { q.policies = p }

func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// TryEnqueue ставит задачу, не блокируясь. false — очередь полна или
// закрыта; сам факт логируется на вызывающей стороне.
func (q *Queue) TryEnqueue(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// Stop закрывает приём и ждёт, пока воркеры дожуют хвост очереди,
// но не дольше ctx.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logs.Logger.Warnf("task queue stop: drain timed out")
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.ch {
		q.runWithRetry(t)
	}
}

// runWithRetry исполняет задачу по её политике: временные отказы
// повторяются с фиксированной паузой до предела попыток, терминальные
// (NotFound, PermissionDenied) — нет. Итог уходит в журнал.
func (q *Queue) runWithRetry(t Task) {
	policy, ok := q.policies[t.Kind]
	if !ok {
		policy = Policy{MaxAttempts: 1}
	}

	var res Result
	var err error
	attempts := 0
	for {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), q.taskBudget)
		res, err = q.exec.Run(ctx, t)
		cancel()

		if err == nil {
			break
		}
		if !Retryable(err) || attempts >= policy.MaxAttempts {
			logs.Logger.Errorf("task %s(%d) failed after %d attempt(s): %v", t.Kind, t.EntityID, attempts, err)
			res = Result{Status: models.TaskStatusError, Details: map[string]any{"message": err.Error()}}
			break
		}
		logs.Logger.Warnf("task %s(%d) attempt %d: %v (retry in %s)", t.Kind, t.EntityID, attempts, err, policy.Delay)
		q.sleep(policy.Delay)
	}

	q.record(t, res, attempts)
}

func (q *Queue) record(t Task, res Result, attempts int) {
	if res.Status != models.TaskStatusError {
		logs.Logger.Infof("task %s(%d): %s", t.Kind, t.EntityID, res.Status)
	}
	if q.taskLog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.taskLog.Append(ctx, string(t.Kind), t.EntityID, res.Status, attempts, res.Details); err != nil {
		logs.Logger.Warnf("task log append %s(%d): %v", t.Kind, t.EntityID, err)
	}
}
