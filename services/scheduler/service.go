package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusError   TaskStatus = "error"
)

// Task is a unit of background maintenance. Run reports how many items it touched.
type Task struct {
	ID       string
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// TaskState is the externally visible status of a task.
type TaskState struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Interval      string     `json:"interval"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	LastStatus    TaskStatus `json:"lastStatus"`
	LastError     string     `json:"lastError,omitempty"`
	ItemsAffected int        `json:"itemsAffected"`
}

// Service manages scheduled task execution
type Service struct {
	checkInterval time.Duration
	now           func() time.Time

	// Runtime state
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Task state tracking (in-memory, not persisted)
	taskMu      sync.RWMutex
	tasks       []Task
	states      map[string]*TaskState
	taskRunning map[string]bool
}

// NewService creates a scheduler that looks for due tasks every checkInterval.
func NewService(checkInterval time.Duration) *Service {
	if checkInterval < time.Second {
		checkInterval = time.Minute
	}
	return &Service{
		checkInterval: checkInterval,
		now:           time.Now,
		states:        make(map[string]*TaskState),
		taskRunning:   make(map[string]bool),
	}
}

// Register adds a task. Tasks without a Run func or interval are ignored.
func (s *Service) Register(task Task) {
	if task.Run == nil || task.Interval <= 0 || task.ID == "" {
		log.Printf("[scheduler] Ignoring invalid task %q", task.ID)
		return
	}
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	s.tasks = append(s.tasks, task)
	s.states[task.ID] = &TaskState{
		ID:         task.ID,
		Name:       task.Name,
		Interval:   task.Interval.String(),
		LastStatus: TaskStatusPending,
	}
}

// Start begins the scheduler background loop
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.schedulerLoop()

	log.Println("[scheduler] Scheduler service started")
	return nil
}

// Stop cancels running tasks and waits for them until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] Scheduler service stopped gracefully")
	case <-ctx.Done():
		log.Println("[scheduler] Scheduler service stopped (timeout)")
	}
	return nil
}

func (s *Service) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunTasks()
		}
	}
}

// checkAndRunTasks starts every task that is due and not already running.
func (s *Service) checkAndRunTasks() {
	s.taskMu.RLock()
	due := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if s.shouldRunLocked(task) {
			due = append(due, task)
		}
	}
	s.taskMu.RUnlock()

	for _, task := range due {
		s.spawn(task)
	}
}

func (s *Service) shouldRunLocked(task Task) bool {
	if s.taskRunning[task.ID] {
		return false
	}
	st := s.states[task.ID]
	if st.LastRunAt == nil {
		return true
	}
	return s.now().Sub(*st.LastRunAt) >= task.Interval
}

func (s *Service) spawn(task Task) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeTask(ctx, task)
	}()
}

// executeTask runs a task and updates its status
func (s *Service) executeTask(ctx context.Context, task Task) {
	s.taskMu.Lock()
	if s.taskRunning[task.ID] {
		s.taskMu.Unlock()
		return
	}
	s.taskRunning[task.ID] = true
	s.taskMu.Unlock()

	items, err := task.Run(ctx)

	now := s.now().UTC()
	s.taskMu.Lock()
	delete(s.taskRunning, task.ID)
	st := s.states[task.ID]
	st.LastRunAt = &now
	st.ItemsAffected = items
	if err != nil {
		st.LastStatus = TaskStatusError
		st.LastError = err.Error()
	} else {
		st.LastStatus = TaskStatusSuccess
		st.LastError = ""
	}
	s.taskMu.Unlock()

	if err != nil {
		log.Printf("[scheduler] Task %s failed: %v", task.ID, err)
	} else if items > 0 {
		log.Printf("[scheduler] Task %s completed, %d items affected", task.ID, items)
	}
}

// RunTaskNow triggers immediate execution of a task
func (s *Service) RunTaskNow(taskID string) error {
	s.taskMu.RLock()
	var (
		task  Task
		found bool
	)
	for _, t := range s.tasks {
		if t.ID == taskID {
			task, found = t, true
			break
		}
	}
	running := s.taskRunning[taskID]
	s.taskMu.RUnlock()

	if !found {
		return ErrTaskNotFound
	}
	if running {
		return ErrTaskRunning
	}
	s.spawn(task)
	return nil
}

// GetTaskStatus returns all tasks in registration order.
// Running tasks will have their status overridden to "running"
func (s *Service) GetTaskStatus() []TaskState {
	s.taskMu.RLock()
	defer s.taskMu.RUnlock()

	out := make([]TaskState, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = *s.states[task.ID]
		if s.taskRunning[task.ID] {
			out[i].LastStatus = TaskStatusRunning
		}
	}
	return out
}

// IsTaskRunning checks if a specific task is currently running
func (s *Service) IsTaskRunning(taskID string) bool {
	s.taskMu.RLock()
	defer s.taskMu.RUnlock()
	return s.taskRunning[taskID]
}

// Wait blocks until every spawned task, and the loop if started, has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}
