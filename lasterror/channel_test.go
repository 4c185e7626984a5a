package lasterror

import (
	"errors"
	"runtime"
	"sync"
	"testing"
)

func TestChannel_SetMessageTake(t *testing.T) {
	var c Channel

	if _, ok := c.Message(1); ok {
		t.Fatal("Expected empty slot on zero channel")
	}

	c.Set(1, errors.New("first"))
	c.Set(1, errors.New("second"))

	msg, ok := c.Message(1)
	if !ok || msg != "second" {
		t.Fatalf("Message = %q, %v; want second", msg, ok)
	}

	// peek does not clear
	if _, ok := c.Message(1); !ok {
		t.Fatal("Expected Message to leave the slot intact")
	}

	err := c.Take(1)
	if err == nil || err.Error() != "second" {
		t.Fatalf("Take = %v, want second", err)
	}
	if c.Take(1) != nil {
		t.Fatal("Expected slot empty after Take")
	}
}

func TestChannel_ScopesAreIndependent(t *testing.T) {
	var c Channel

	c.Set(1, errors.New("one"))
	c.Set(2, errors.New("two"))

	if msg, _ := c.Message(1); msg != "one" {
		t.Fatalf("scope 1 = %q", msg)
	}
	if msg, _ := c.Message(2); msg != "two" {
		t.Fatalf("scope 2 = %q", msg)
	}

	c.Clear(1)
	if _, ok := c.Last(1); ok {
		t.Fatal("Expected scope 1 cleared")
	}
	if _, ok := c.Last(2); !ok {
		t.Fatal("Clear must not touch other scopes")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestChannel_SetNilClears(t *testing.T) {
	var c Channel
	c.Set(7, errors.New("x"))
	c.Set(7, nil)
	if _, ok := c.Message(7); ok {
		t.Fatal("Expected Set(nil) to clear")
	}
}

func TestDefault_PerThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	Set(errors.New("mine"))
	defer Take()

	if msg, ok := Message(); !ok || msg != "mine" {
		t.Fatalf("Message = %q, %v", msg, ok)
	}
	if Default().Len() == 0 {
		t.Fatal("Expected default channel to hold an entry")
	}
}

func TestChannel_Concurrent(t *testing.T) {
	var c Channel
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(s Scope) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(s, errors.New("e"))
				c.Message(s)
				c.Take(s)
			}
		}(Scope(i))
	}
	wg.Wait()
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}
