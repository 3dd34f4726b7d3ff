package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected  atomic.Bool
	lastTickUnix atomic.Int64 // unix seconds

	droppedTicks atomic.Int64
	deadWorkers  atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) AddDropped(n int64) { s.droppedTicks.Add(n) }
func (s *State) Dropped() int64     { return s.droppedTicks.Load() }
func (s *State) WorkerDied()        { s.deadWorkers.Add(1) }
func (s *State) DeadWorkers() int64 { return s.deadWorkers.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
