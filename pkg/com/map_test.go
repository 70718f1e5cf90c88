package com

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/watchparty/watchparty/pkg/network"
)

type testClient struct {
	id           int
	c            int32
	disconnected bool
}

func (t *testClient) Id() network.Uid { return network.Uid(fmt.Sprintf("%v", t.id)) }
func (t *testClient) Disconnect()     { t.disconnected = true }
func (t *testClient) change(n int)    { atomic.AddInt32(&t.c, int32(n)) }

func TestPointerValue(t *testing.T) {
	m := NewNetMap[network.Uid, *testClient]()
	c := testClient{id: 1}
	m.Add(&c)
	fc, _ := m.FindBy(func(c *testClient) bool { return c.id == 1 })
	c.change(100)
	fc2, _ := m.Find(fc.Id())

	expected := c.c == fc.c && c.c == fc2.c
	if !expected {
		t.Errorf("not expected change, o: %v != %v != %v", c.c, fc.c, fc2.c)
	}
}

func TestNetMap(t *testing.T) {
	m := NewNetMap[network.Uid, *testClient]()
	a, b := &testClient{id: 1}, &testClient{id: 2}
	m.Add(a)
	m.Add(b)

	if m.Len() != 2 {
		t.Fatalf("expected 2 clients, got %v", m.Len())
	}
	if _, err := m.Find(""); err != ErrNotFound {
		t.Errorf("empty key should not be found, got %v", err)
	}

	m.RemoveDisconnect(a)
	if !a.disconnected {
		t.Errorf("client should be disconnected")
	}
	if m.Has(a.Id()) {
		t.Errorf("client should be removed")
	}

	v, ok := m.Pop(b.Id())
	if !ok || v != b {
		t.Errorf("expected to pop %v, got %v", b, v)
	}
	if !m.IsEmpty() {
		t.Errorf("map should be empty")
	}
}

func TestClear(t *testing.T) {
	m := NewMap[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)
	sum := 0
	for _, v := range m.Clear() {
		sum += v
	}
	if sum != 3 {
		t.Errorf("expected all values back, got sum %v", sum)
	}
	if !m.IsEmpty() {
		t.Errorf("map should be empty")
	}
}
