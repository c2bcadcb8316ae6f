// Package cmn provides common low-level types and utilities shared by the
// catalog, archive, resolver, cache, and scheduler packages.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"sync"
)

type (
	// StopCh is a specialized channel for broadcasting a single stop signal.
	StopCh struct {
		once sync.Once
		ch   chan struct{}
	}

	// DynSemaphore implements a semaphore whose size can change at runtime.
	DynSemaphore struct {
		size int
		cur  int
		c    *sync.Cond
		mu   sync.Mutex
	}
)

func NewStopCh() *StopCh { return &StopCh{ch: make(chan struct{}, 1)} }

func (sc *StopCh) Listen() <-chan struct{} { return sc.ch }

func (sc *StopCh) Close() { sc.once.Do(func() { close(sc.ch) }) }

func NewDynSemaphore(n int) *DynSemaphore {
	s := &DynSemaphore{size: n}
	s.c = sync.NewCond(&s.mu)
	return s
}

func (s *DynSemaphore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *DynSemaphore) SetSize(n int) {
	Assert(n >= 1)
	s.mu.Lock()
	s.size = n
	s.mu.Unlock()
}

func (s *DynSemaphore) Acquire(cnts ...int) {
	cnt := argOr1(cnts)
	s.mu.Lock()
	for s.cur+cnt > s.size {
		s.c.Wait()
	}
	s.cur += cnt
	s.mu.Unlock()
}

func (s *DynSemaphore) Release(cnts ...int) {
	cnt := argOr1(cnts)
	s.mu.Lock()
	Assert(s.cur >= cnt)
	s.cur -= cnt
	s.c.Signal()
	s.mu.Unlock()
}

func argOr1(cnts []int) int {
	if len(cnts) > 0 {
		return cnts[0]
	}
	return 1
}
