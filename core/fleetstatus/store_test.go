package fleetstatus

import "testing"

func TestMemoryStoreFilter(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{RobotID: 2, State: "field_idle"})
	s.Set(Status{RobotID: 1, State: "traveling_to_base", LowBattery: true})
	s.Set(Status{RobotID: 3, State: "field_idle"})

	out := s.List(Filter{State: "field_idle"})
	if len(out) != 2 || out[0].RobotID != 2 || out[1].RobotID != 3 {
		t.Fatalf("state filter failed: %#v", out)
	}
	out = s.List(Filter{LowBattery: true})
	if len(out) != 1 || out[0].RobotID != 1 {
		t.Fatalf("low battery filter failed: %#v", out)
	}
}

func TestMemoryStoreKeepsLastDecision(t *testing.T) {
	s := NewMemoryStore()
	s.RecordDecision(4, LastDecision{Decision: "assigned", Order: 9, Tick: 3})
	s.Set(Status{RobotID: 4, State: "traveling_to_restaurant"})

	out := s.List(Filter{})
	if len(out) != 1 {
		t.Fatalf("expected one robot, got %d", len(out))
	}
	if out[0].LastDecision == nil || out[0].LastDecision.Order != 9 {
		t.Fatalf("last decision lost: %#v", out[0])
	}
	if out[0].State != "traveling_to_restaurant" {
		t.Fatalf("state not updated: %#v", out[0])
	}
}
