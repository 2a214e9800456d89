package model

import "fmt"

// Point is a grid coordinate. It encodes on the wire as a two element array [x, y].
type Point [2]int

// Origin is the robot base.
var Origin = Point{0, 0}

// Pt builds a Point from its coordinates.
func Pt(x, y int) Point { return Point{x, y} }

// X returns the horizontal coordinate.
func (p Point) X() int { return p[0] }

// Y returns the vertical coordinate.
func (p Point) Y() int { return p[1] }

// Manhattan returns the taxicab distance between p and q.
func (p Point) Manhattan(q Point) int {
	return abs(p[0]-q[0]) + abs(p[1]-q[1])
}

// StepToward moves one grid unit toward target. The Y axis is aligned first,
// then X. It returns p unchanged when p == target.
func (p Point) StepToward(target Point) Point {
	switch {
	case p[1] < target[1]:
		p[1]++
	case p[1] > target[1]:
		p[1]--
	case p[0] < target[0]:
		p[0]++
	case p[0] > target[0]:
		p[0]--
	}
	return p
}

// In reports whether p lies inside a w x h grid anchored at the origin.
func (p Point) In(w, h int) bool {
	return p[0] >= 0 && p[1] >= 0 && p[0] < w && p[1] < h
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p[0], p[1]) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
