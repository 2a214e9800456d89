package model

import "testing"

func TestManhattan(t *testing.T) {
	cases := []struct {
		a, b Point
		want int
	}{
		{Pt(0, 0), Pt(0, 0), 0},
		{Pt(0, 0), Pt(3, 0), 3},
		{Pt(1, 2), Pt(4, 6), 7},
		{Pt(5, 5), Pt(2, 1), 7},
	}
	for _, c := range cases {
		if got := c.a.Manhattan(c.b); got != c.want {
			t.Errorf("%v->%v: expected %d got %d", c.a, c.b, c.want, got)
		}
	}
}

func TestStepTowardAlignsYFirst(t *testing.T) {
	p := Pt(0, 0)
	target := Pt(2, 2)
	var path []Point
	for p != target {
		p = p.StepToward(target)
		path = append(path, p)
	}
	want := []Point{Pt(0, 1), Pt(0, 2), Pt(1, 2), Pt(2, 2)}
	if len(path) != len(want) {
		t.Fatalf("expected %d steps got %d", len(want), len(path))
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("step %d: expected %v got %v", i, want[i], path[i])
		}
	}
}

func TestStepTowardAtTarget(t *testing.T) {
	p := Pt(3, 4)
	if got := p.StepToward(p); got != p {
		t.Fatalf("expected no move got %v", got)
	}
}

func TestFoodValidate(t *testing.T) {
	if err := (Food{Size: 0}).Validate(); err == nil {
		t.Fatal("expected error for empty food")
	}
	if err := (Food{Size: 2}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
