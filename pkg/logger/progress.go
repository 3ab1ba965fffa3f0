package logger

import (
	"sync"
	"time"
)

// ProgressTracker logs the progress of a long loop at a bounded rate.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int
	current     int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string
	Total       int
	LogInterval time.Duration
	Logger      Logger
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.LogInterval == 0 {
		config.LogInterval = 2 * time.Second
	}
	now := time.Now()
	return &ProgressTracker{
		logger:      OrGlobal(config.Logger).WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}
}

// Increment advances the counter by one and logs if the interval elapsed.
func (p *ProgressTracker) Increment() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current++
	now := time.Now()
	if now.Sub(p.lastLogTime) < p.logInterval {
		return
	}
	p.lastLogTime = now
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": p.current,
		"total":     p.total,
		"elapsed":   now.Sub(p.startTime).String(),
	}).Info("Progress")
}

// Complete logs the final count at debug level.
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": p.current,
		"total":     p.total,
		"duration":  time.Since(p.startTime).String(),
	}).Debug("Operation completed")
}

// StageTimer records how long each named stage of a run took.
type StageTimer struct {
	logger Logger
	order  []string
	spent  map[string]time.Duration
	start  time.Time
}

// NewStageTimer creates a timer that reports through l.
func NewStageTimer(l Logger) *StageTimer {
	return &StageTimer{
		logger: OrGlobal(l),
		spent:  make(map[string]time.Duration),
		start:  time.Now(),
	}
}

// Track starts a stage and returns the function that ends it.
func (s *StageTimer) Track(stage string) func() {
	began := time.Now()
	return func() {
		if _, seen := s.spent[stage]; !seen {
			s.order = append(s.order, stage)
		}
		s.spent[stage] += time.Since(began)
	}
}

// Log writes one debug line with every stage duration and the total.
func (s *StageTimer) Log(msg string) {
	fields := Fields{"total": time.Since(s.start).String()}
	for _, stage := range s.order {
		fields[stage] = s.spent[stage].String()
	}
	s.logger.WithFields(fields).Debug(msg)
}
