package render

// MemoryInfo counts resources resident on the device.
type MemoryInfo struct {
	Geometries int
	Textures   int
}

// RenderInfo counts the work of the last frame. Frame increases by one per
// Render call.
type RenderInfo struct {
	Frame     int
	Calls     int
	Vertices  int
	Faces     int
	Lines     int
	Points    int
	Instances int
}

// Info is a snapshot of renderer statistics.
type Info struct {
	Memory   MemoryInfo
	Render   RenderInfo
	Programs int
}

func (i *Info) update(count int, mode DrawMode, instances int) {
	if instances < 1 {
		instances = 1
	}
	r := &i.Render
	r.Calls++
	r.Vertices += instances * count
	r.Instances += instances
	switch mode {
	case DrawTriangles:
		r.Faces += instances * (count / 3)
	case DrawTriangleStrip, DrawTriangleFan:
		r.Faces += instances * max(0, count-2)
	case DrawLines:
		r.Lines += instances * (count / 2)
	case DrawLineStrip:
		r.Lines += instances * max(0, count-1)
	case DrawLineLoop:
		r.Lines += instances * count
	case DrawPoints:
		r.Points += instances * count
	}
}

func (i *Info) reset() {
	i.Render.Frame++
	i.Render.Calls = 0
	i.Render.Vertices = 0
	i.Render.Faces = 0
	i.Render.Lines = 0
	i.Render.Points = 0
	i.Render.Instances = 0
}
