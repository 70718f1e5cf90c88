package service

import (
	"context"
	"errors"
	"testing"
)

type testService struct {
	name string
	log  *[]string
	err  error
}

func (s *testService) Run() { *s.log = append(*s.log, "run "+s.name) }
func (s *testService) Shutdown(context.Context) error {
	*s.log = append(*s.log, "stop "+s.name)
	return s.err
}
func (s *testService) String() string { return s.name }

func TestGroup(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	g := Group{}
	g.Add(&testService{name: "a", log: &log})
	g.AddIf(false, &testService{name: "skipped", log: &log})
	g.AddIf(true, &testService{name: "b", log: &log, err: boom})
	g.Add("not runnable")

	if g.Len() != 3 {
		t.Fatalf("expected 3 services, got %v", g.Len())
	}

	g.Start()
	err := g.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected the shutdown error, got %v", err)
	}

	want := []string{"run a", "run b", "stop b", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("got %v, want %v", log, want)
			break
		}
	}
}

func TestGroupCanceled(t *testing.T) {
	var log []string
	g := Group{}
	g.Add(&testService{name: "a", log: &log, err: context.Canceled})
	if err := g.Shutdown(context.Background()); err != nil {
		t.Errorf("canceled should be ignored, got %v", err)
	}
}
