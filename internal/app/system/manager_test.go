package system

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	events   *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.events = append(*s.events, "start "+s.name)
	return nil
}

func (s *fakeService) Stop(ctx context.Context) error {
	*s.events = append(*s.events, "stop "+s.name)
	return nil
}

func TestManager_StopsInReverseOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		m.Register(&fakeService{name: name, events: &events})
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := m.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected lifecycle order: %v", events)
	}
}

func TestManager_StartAllRollsBack(t *testing.T) {
	var events []string
	m := NewManager()
	m.Register(&fakeService{name: "a", events: &events})
	m.Register(&fakeService{name: "b", events: &events, startErr: errors.New("boom")})
	m.Register(&fakeService{name: "c", events: &events})

	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}

	want := []string{"start a", "stop a"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected rollback order: %v", events)
	}
}
