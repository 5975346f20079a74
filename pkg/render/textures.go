package render

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/scene"
)

type boneTexture struct {
	handle Handle
	size   int
	data   []float32
}

// textures uploads textures, allocates texture units for a draw and owns
// render target framebuffers.
type textures struct {
	dev   Device
	caps  *Capabilities
	props *properties
	info  *Info
	state *State

	units int
	bones map[*scene.Skeleton]*boneTexture
}

func newTextures(dev Device, caps *Capabilities, props *properties, info *Info, state *State) *textures {
	return &textures{
		dev:   dev,
		caps:  caps,
		props: props,
		info:  info,
		state: state,
		bones: map[*scene.Skeleton]*boneTexture{},
	}
}

func (t *textures) resetUnits() { t.units = 0 }

func (t *textures) allocateUnit() (int, error) {
	unit := t.units
	if unit >= t.caps.MaxTextures {
		return 0, fmt.Errorf("%w: need unit %d, device has %d", ErrTextureUnitsExceeded, unit, t.caps.MaxTextures)
	}
	t.units++
	return unit, nil
}

func paramsOf(tex *material.Texture) TextureParams {
	return TextureParams{
		WrapS:     tex.WrapS,
		WrapT:     tex.WrapT,
		MagFilter: tex.MagFilter,
		MinFilter: tex.MinFilter,
		FlipY:     tex.FlipY,
	}
}

// needsPowerOfTwo reports whether older APIs need the image resized to
// sample tex correctly.
func (t *textures) needsPowerOfTwo(tex *material.Texture) bool {
	if t.caps.Modern() {
		return false
	}
	return tex.WrapS != material.WrapClamp || tex.WrapT != material.WrapClamp || tex.MinFilter == material.FilterMipmap
}

// resizeImage scales img down to fit maxSize and, when pot is set, to the
// nearest lower power of two.
func resizeImage(img *image.RGBA, maxSize int, pot bool) (*image.RGBA, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	nw, nh := w, h
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		scale := float64(maxSize) / float64(max(w, h))
		nw = max(1, int(math.Floor(float64(w)*scale)))
		nh = max(1, int(math.Floor(float64(h)*scale)))
	}
	if pot {
		nw = floorPowerOfTwo(nw)
		nh = floorPowerOfTwo(nh)
	}
	if nw == w && nh == h {
		return img, false
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, true
}

func floorPowerOfTwo(n int) int {
	if n < 1 {
		return 1
	}
	return 1 << int(math.Floor(math.Log2(float64(n))))
}

func (t *textures) setTexture2D(tex *material.Texture, unit int) {
	tp := t.props.texture(tex)
	if tex.Version > 0 && tp.version != tex.Version {
		t.upload2D(tex, tp, unit)
		return
	}
	t.state.BindTexture(unit, tp.handle)
}

func (t *textures) init(tex *material.Texture, tp *textureProperties) {
	if tp.handle != 0 {
		return
	}
	tp.handle = t.dev.CreateTexture()
	t.info.Memory.Textures++
	tex.OnDispose(t.onDispose)
}

func (t *textures) upload2D(tex *material.Texture, tp *textureProperties, unit int) {
	t.init(tex, tp)
	t.state.BindTexture(unit, tp.handle)
	if tex.Image == nil {
		return
	}

	pot := t.needsPowerOfTwo(tex)
	img, resized := resizeImage(tex.Image, t.caps.MaxTextureSize, pot && !tex.PowerOfTwo())
	if resized {
		Logger().Warn("texture resized",
			"texture", tex.Name,
			"from", tex.Image.Bounds().Size(),
			"to", img.Bounds().Size())
	}
	t.dev.TexImage2D(tp.handle, img, paramsOf(tex))
	if tex.GenerateMipmaps && tex.MinFilter == material.FilterMipmap {
		t.dev.GenerateMipmap(tp.handle)
	}
	tp.version = tex.Version
}

func (t *textures) setTextureCube(tex *material.Texture, unit int) {
	tp := t.props.texture(tex)
	if tex.Version > 0 && tp.version != tex.Version {
		t.init(tex, tp)
		t.state.BindTexture(unit, tp.handle)
		var faces [6]*image.RGBA
		for i, f := range tex.Faces {
			if f == nil {
				return
			}
			faces[i], _ = resizeImage(f, t.caps.MaxCubemapSize, false)
		}
		t.dev.TexImageCube(tp.handle, faces, paramsOf(tex))
		if tex.GenerateMipmaps && tex.MinFilter == material.FilterMipmap {
			t.dev.GenerateMipmap(tp.handle)
		}
		tp.version = tex.Version
		return
	}
	t.state.BindTexture(unit, tp.handle)
}

// setBoneTexture packs the skeleton's bone matrices into a float texture
// and binds it.
func (t *textures) setBoneTexture(sk *scene.Skeleton, unit int) int {
	bt, ok := t.bones[sk]
	if !ok {
		size := sk.BoneTextureDim()
		bt = &boneTexture{
			handle: t.dev.CreateTexture(),
			size:   size,
			data:   make([]float32, size*size*4),
		}
		sk.BoneTextureSize = size
		t.bones[sk] = bt
		sk.OnDispose(t.onSkeletonDispose)
	}
	copy(bt.data, sk.BoneMatrices)
	t.state.BindTexture(unit, bt.handle)
	t.dev.TexImageFloat(bt.handle, bt.size, bt.data)
	return bt.size
}

func (t *textures) onSkeletonDispose(sk *scene.Skeleton) {
	bt, ok := t.bones[sk]
	if !ok {
		return
	}
	t.dev.DeleteTexture(bt.handle)
	delete(t.bones, sk)
	sk.BoneTextureSize = 0
}

func (t *textures) setupRenderTarget(rt *material.RenderTarget) *targetProperties {
	rp := t.props.target(rt)
	if rp.framebuffer != 0 {
		return rp
	}
	tp := t.props.texture(rt.Texture)
	t.init(rt.Texture, tp)
	t.dev.TexImage2D(tp.handle, rt.Texture.Image, paramsOf(rt.Texture))
	tp.version = rt.Texture.Version
	rp.texture = tp.handle
	rp.framebuffer = t.dev.CreateFramebuffer(tp.handle, rt.Width, rt.Height, rt.DepthBuffer)
	rt.OnDispose(t.onTargetDispose)
	return rp
}

func (t *textures) updateRenderTargetMipmap(rt *material.RenderTarget) {
	tex := rt.Texture
	if !tex.GenerateMipmaps || tex.MinFilter != material.FilterMipmap {
		return
	}
	if !t.caps.Modern() && !tex.PowerOfTwo() {
		return
	}
	rp := t.props.target(rt)
	t.state.BindTexture(0, rp.texture)
	t.dev.GenerateMipmap(rp.texture)
}

func (t *textures) onDispose(tex *material.Texture) {
	tp, ok := t.props.textures[tex]
	if !ok {
		return
	}
	if tp.handle != 0 {
		t.dev.DeleteTexture(tp.handle)
		t.info.Memory.Textures--
	}
	delete(t.props.textures, tex)
}

// onTargetDispose runs on Dispose and on SetSize; the texture itself stays
// registered so a resized target is rebuilt on next use.
func (t *textures) onTargetDispose(rt *material.RenderTarget) {
	rp, ok := t.props.targets[rt]
	if !ok {
		return
	}
	if rp.framebuffer != 0 {
		t.dev.DeleteFramebuffer(rp.framebuffer)
	}
	if tp, ok := t.props.textures[rt.Texture]; ok {
		if tp.handle != 0 {
			t.dev.DeleteTexture(tp.handle)
			t.info.Memory.Textures--
		}
		delete(t.props.textures, rt.Texture)
	}
	delete(t.props.targets, rt)
}

func (t *textures) dispose() {
	for tex, tp := range t.props.textures {
		if tp.handle != 0 {
			t.dev.DeleteTexture(tp.handle)
		}
		delete(t.props.textures, tex)
	}
	for rt, rp := range t.props.targets {
		if rp.framebuffer != 0 {
			t.dev.DeleteFramebuffer(rp.framebuffer)
		}
		delete(t.props.targets, rt)
	}
	for sk, bt := range t.bones {
		t.dev.DeleteTexture(bt.handle)
		delete(t.bones, sk)
	}
	t.info.Memory.Textures = 0
}
