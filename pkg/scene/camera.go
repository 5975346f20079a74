package scene

import (
	"math"

	"github.com/taigrr/tableau/pkg/math3d"
)

// Projection selects the camera projection.
type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

// Camera is a viewpoint node. Its view matrix is the inverse of its world
// matrix.
type Camera struct {
	Object

	Projection Projection

	// Perspective parameters
	FOV         float64 // Vertical field of view in radians
	AspectRatio float64 // Width / Height

	// Orthographic parameters
	Left, Right, Top, Bottom float64

	Near float64 // Near clipping plane
	Far  float64 // Far clipping plane
	Zoom float64

	// Cached matrices (computed on demand)
	projMatrix  math3d.Mat4
	projDirty   bool
	viewMatrix  math3d.Mat4
	viewVersion uint64
	viewValid   bool
}

// NewPerspectiveCamera creates a perspective camera. fov is in radians.
func NewPerspectiveCamera(fov, aspect, near, far float64) *Camera {
	c := &Camera{
		Projection:  Perspective,
		FOV:         fov,
		AspectRatio: aspect,
		Near:        near,
		Far:         far,
		Zoom:        1,
		projDirty:   true,
	}
	c.init(c)
	return c
}

// NewCamera creates a perspective camera with default settings.
func NewCamera() *Camera {
	return NewPerspectiveCamera(math.Pi/3, 16.0/9.0, 0.1, 1000)
}

// NewOrthographicCamera creates an orthographic camera.
func NewOrthographicCamera(left, right, top, bottom, near, far float64) *Camera {
	c := &Camera{
		Projection: Orthographic,
		Left:       left,
		Right:      right,
		Top:        top,
		Bottom:     bottom,
		Near:       near,
		Far:        far,
		Zoom:       1,
		projDirty:  true,
	}
	c.init(c)
	return c
}

func (*Camera) node() {}

// IsPerspective reports whether the camera uses a perspective projection.
func (c *Camera) IsPerspective() bool {
	return c.Projection == Perspective
}

// SetFOV sets the field of view (in radians).
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projDirty = true
}

// SetAspectRatio sets the aspect ratio.
func (c *Camera) SetAspectRatio(aspect float64) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// SetZoom scales the projection.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = zoom
	c.projDirty = true
}

// SetBounds sets the orthographic view volume.
func (c *Camera) SetBounds(left, right, top, bottom float64) {
	c.Left, c.Right, c.Top, c.Bottom = left, right, top, bottom
	c.projDirty = true
}

// UpdateProjectionMatrix forces the projection to be recomputed on next use.
func (c *Camera) UpdateProjectionMatrix() {
	c.projDirty = true
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.computeProjectionMatrix()
		c.projDirty = false
	}
	return c.projMatrix
}

func (c *Camera) computeProjectionMatrix() {
	zoom := c.Zoom
	if zoom == 0 {
		zoom = 1
	}
	switch c.Projection {
	case Orthographic:
		cx, cy := (c.Left+c.Right)/2, (c.Top+c.Bottom)/2
		dx, dy := (c.Right-c.Left)/(2*zoom), (c.Top-c.Bottom)/(2*zoom)
		c.projMatrix = math3d.Orthographic(cx-dx, cx+dx, cy-dy, cy+dy, c.Near, c.Far)
	default:
		fov := 2 * math.Atan(math.Tan(c.FOV/2)/zoom)
		c.projMatrix = math3d.Perspective(fov, c.AspectRatio, c.Near, c.Far)
	}
}

// ViewMatrix returns the inverse of the world matrix, recomputed only when
// the world matrix changed.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if !c.viewValid || c.viewVersion != c.worldVersion {
		c.viewMatrix = c.matrixWorld.Inverse()
		c.viewVersion = c.worldVersion
		c.viewValid = true
	}
	return c.viewMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// LookAt rotates the camera so it faces target (its -Z axis points at it).
func (c *Camera) LookAt(target math3d.Vec3) {
	c.LookAtUp(target, math3d.Up())
}

// LookAtUp is LookAt with an explicit up vector.
func (c *Camera) LookAtUp(target, up math3d.Vec3) {
	c.SetRotation(math3d.QuatFromRotationMatrix(math3d.LookAt(c.position, target, up).Transpose()))
}

// Forward returns the world-space viewing direction.
func (c *Camera) Forward() math3d.Vec3 {
	return c.matrixWorld.MulVec3Dir(math3d.V3(0, 0, -1)).Normalize()
}

// RightDirection returns the world-space right direction.
func (c *Camera) RightDirection() math3d.Vec3 {
	return c.matrixWorld.MulVec3Dir(math3d.V3(1, 0, 0)).Normalize()
}

// MoveForward moves the camera along its view direction (or backward if
// negative).
func (c *Camera) MoveForward(distance float64) {
	dir := c.rotation.Rotate(math3d.V3(0, 0, -1))
	c.SetPosition(c.position.Add(dir.Scale(distance)))
}

// MoveRight moves the camera right (or left if negative).
func (c *Camera) MoveRight(distance float64) {
	dir := c.rotation.Rotate(math3d.V3(1, 0, 0))
	c.SetPosition(c.position.Add(dir.Scale(distance)))
}

// WorldToScreen transforms a world point to screen coordinates.
// Returns (screenX, screenY, depth, visible).
func (c *Camera) WorldToScreen(worldPos math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, visible bool) {
	// Transform to clip space
	clipPos := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(worldPos, 1))

	// Check if behind camera
	if clipPos.W <= 0 {
		return 0, 0, 0, false
	}

	// Perspective divide to NDC (-1 to 1)
	ndc := clipPos.PerspectiveDivide()

	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 || ndc.Z < -1 || ndc.Z > 1 {
		return 0, 0, 0, false
	}

	x = (ndc.X + 1) * 0.5 * float64(screenWidth)
	y = (1 - ndc.Y) * 0.5 * float64(screenHeight) // Y is flipped
	depth = ndc.Z

	return x, y, depth, true
}
