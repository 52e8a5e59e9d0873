// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package counter_test

import (
	"sync"
	"testing"

	"github.com/slide-computer/slided/counter"
)

func TestCounter(t *testing.T) {
	c := counter.Counter(0)
	if !c.IsZero() {
		t.Fatal("new counter must be zero")
	}

	c.Increment()
	c.Increment()
	if 2 != c.Uint64() {
		t.Fatalf("counter: %d  expected: %d", c.Uint64(), 2)
	}

	c.Decrement()
	c.Decrement()
	if !c.IsZero() {
		t.Fatal("counter must return to zero")
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := counter.Counter(0)
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i += 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j += 1 {
				c.Increment()
			}
		}()
	}
	wg.Wait()
	if 10000 != c.Uint64() {
		t.Fatalf("counter: %d  expected: %d", c.Uint64(), 10000)
	}
}
