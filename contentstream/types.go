package contentstream

// Path describes a graphics path made of subpaths.
type Path struct {
	Subpaths []Subpath
}

// Subpath describes a portion of a path.
type Subpath struct {
	Points []PathPoint
	Closed bool
}

// PathPoint identifies a path segment and its coordinates.
type PathPoint struct {
	X, Y                 float64
	Type                 PathPointType
	Control1X, Control1Y float64
	Control2X, Control2Y float64
}

// PathPointType enumerates path segment types.
type PathPointType int

const (
	PathMoveTo PathPointType = iota
	PathLineTo
	PathCurveTo
	PathClose
)

// Operations converts the path into construction operators (m, l, c, h).
// Painting is left to the caller.
func (p Path) Operations() []Operation {
	var ops []Operation
	for _, sp := range p.Subpaths {
		for _, pt := range sp.Points {
			switch pt.Type {
			case PathMoveTo:
				ops = append(ops, Op("m", Num(pt.X), Num(pt.Y)))
			case PathLineTo:
				ops = append(ops, Op("l", Num(pt.X), Num(pt.Y)))
			case PathCurveTo:
				ops = append(ops, Op("c",
					Num(pt.Control1X), Num(pt.Control1Y),
					Num(pt.Control2X), Num(pt.Control2Y),
					Num(pt.X), Num(pt.Y)))
			case PathClose:
				ops = append(ops, Op("h"))
			}
		}
		if sp.Closed {
			ops = append(ops, Op("h"))
		}
	}
	return ops
}
