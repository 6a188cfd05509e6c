package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Task is a recurring maintenance job. Run returns how many items it
// processed.
type Task struct {
	ID       string
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// Status is the last observed outcome of a task.
type Status struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Running        bool       `json:"running"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	ItemsProcessed int        `json:"itemsProcessed"`
}

// Service runs registered tasks on their intervals in the background. Task
// state lives in memory only; every task must therefore be safe to re-run
// from scratch after a restart.
type Service struct {
	checkInterval time.Duration
	tasks         []Task

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stateMu sync.RWMutex
	state   map[string]*taskState
}

type taskState struct {
	running        bool
	lastRunAt      *time.Time
	lastError      string
	itemsProcessed int
}

// NewService creates a scheduler checking task due times every checkInterval.
// Intervals under a second fall back to a minute.
func NewService(checkInterval time.Duration) *Service {
	if checkInterval < time.Second {
		checkInterval = time.Minute
	}
	return &Service{
		checkInterval: checkInterval,
		state:         make(map[string]*taskState),
	}
}

// Register adds a task. Must be called before Start.
func (s *Service) Register(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, task)
	s.stateMu.Lock()
	s.state[task.ID] = &taskState{}
	s.stateMu.Unlock()
}

// Start begins the background loop. Starting an already running scheduler is
// a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop()

	log.Printf("[scheduler] started with %d tasks", len(s.tasks))
}

// Stop cancels the loop and waits for in-flight tasks, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout waiting for tasks)")
	}
	s.running = false
}

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.runDueTasks()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runDueTasks()
		}
	}
}

func (s *Service) runDueTasks() {
	for _, task := range s.tasks {
		if !s.shouldRun(task) {
			continue
		}
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			s.execute(s.ctx, t)
		}(task)
	}
}

func (s *Service) shouldRun(task Task) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	st := s.state[task.ID]
	if st == nil || st.running {
		return false
	}
	if st.lastRunAt == nil {
		return true
	}
	return time.Since(*st.lastRunAt) >= task.Interval
}

func (s *Service) execute(ctx context.Context, task Task) {
	s.stateMu.Lock()
	st := s.state[task.ID]
	if st == nil || st.running {
		s.stateMu.Unlock()
		return
	}
	st.running = true
	s.stateMu.Unlock()

	processed, err := task.Run(ctx)

	now := time.Now().UTC()
	s.stateMu.Lock()
	st.running = false
	st.lastRunAt = &now
	st.itemsProcessed = processed
	if err != nil {
		st.lastError = err.Error()
	} else {
		st.lastError = ""
	}
	s.stateMu.Unlock()

	if err != nil {
		log.Printf("[scheduler] task %s failed: %v", task.ID, err)
		return
	}
	if processed > 0 {
		log.Printf("[scheduler] task %s processed %d items", task.ID, processed)
	}
}

// RunNow triggers a task immediately, outside its interval.
func (s *Service) RunNow(taskID string) error {
	for _, task := range s.tasks {
		if task.ID != taskID {
			continue
		}

		s.stateMu.RLock()
		running := s.state[taskID] != nil && s.state[taskID].running
		s.stateMu.RUnlock()
		if running {
			return errors.New("task is already running")
		}

		s.mu.Lock()
		ctx := s.ctx
		started := s.running
		s.mu.Unlock()
		if !started {
			ctx = context.Background()
		}

		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			s.execute(ctx, t)
		}(task)
		return nil
	}
	return errors.New("task not found")
}

// TaskStatus reports the current state of every registered task.
func (s *Service) TaskStatus() []Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	statuses := make([]Status, 0, len(s.tasks))
	for _, task := range s.tasks {
		st := s.state[task.ID]
		status := Status{ID: task.ID, Name: task.Name}
		if st != nil {
			status.Running = st.running
			status.LastRunAt = st.lastRunAt
			status.LastError = st.lastError
			status.ItemsProcessed = st.itemsProcessed
		}
		statuses = append(statuses, status)
	}
	return statuses
}
