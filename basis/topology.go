package basis

import "fmt"

// Side identifies one axis-aligned face of a patch parameter box:
// direction Side/2, lower face for even values, upper face for odd.
type Side int

const (
	West  Side = iota // direction 0, lower
	East              // direction 0, upper
	South             // direction 1, lower
	North             // direction 1, upper
	Front             // direction 2, lower
	Back              // direction 2, upper
)

func (s Side) Direction() int { return int(s) / 2 }
func (s Side) IsUpper() bool  { return int(s)%2 == 1 }

func (s Side) String() string {
	names := []string{"west", "east", "south", "north", "front", "back"}
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// BoundarySide marks one side of one patch.
type BoundarySide struct {
	Patch int
	S     Side
}

// Interface joins two patch sides that share a conforming face.
type Interface struct {
	First, Second BoundarySide
}

// Topology records the outer boundary sides and the inner interfaces of
// a multi-patch domain.
type Topology struct {
	Boundaries []BoundarySide
	Interfaces []Interface
}

func (t *Topology) AddBoundary(patch int, s Side) {
	t.Boundaries = append(t.Boundaries, BoundarySide{patch, s})
}

func (t *Topology) AddInterface(p1 int, s1 Side, p2 int, s2 Side) {
	t.Interfaces = append(t.Interfaces,
		Interface{BoundarySide{p1, s1}, BoundarySide{p2, s2}})
}
