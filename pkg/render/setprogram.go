package render

import (
	"fmt"
	"maps"

	"github.com/chewxy/math32"

	"github.com/taigrr/tableau/pkg/material"
	"github.com/taigrr/tableau/pkg/math3d"
	"github.com/taigrr/tableau/pkg/scene"
)

// initMaterial (re)builds the program and uniform set of m.
func (r *Renderer) initMaterial(m *material.Material, fog *scene.Fog, node scene.Node) error {
	mp := r.props.material(m)
	if !mp.observed {
		m.OnDispose(r.onMaterialDispose)
		mp.observed = true
	}

	params, err := r.programParameters(m, fog, r.clipping.NumPlanes, r.clipping.NumIntersection, node)
	if err != nil {
		return err
	}
	code := params.fingerprint()

	programChange := true
	switch prog := mp.program; {
	case prog == nil:
	case prog.Code != code:
		r.programs.release(prog)
		mp.program = nil
	default:
		programChange = false
	}

	uniforms := mp.uniforms
	var src ProgramSource
	if programChange {
		if m.Model.IsShader() {
			uniforms = maps.Clone(m.Shader.Uniforms)
			if uniforms == nil {
				uniforms = map[string]*material.Uniform{}
			}
			defines := params.defines()
			if m.Model == material.RawShader {
				defines = map[string]string{}
			}
			maps.Copy(defines, m.Shader.Defines)
			src = ProgramSource{
				Name:       m.Model.String(),
				Vertex:     m.Shader.Vertex,
				Fragment:   m.Shader.Fragment,
				Defines:    defines,
				Attributes: params.attributeNames(m.Shader.Attributes),
			}
		} else {
			sh, err := r.lib.Get(params.ShaderID)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUnknownShader, err)
			}
			uniforms = sh.Uniforms.Clone()
			src = ProgramSource{
				Name:       params.ShaderID.String(),
				Vertex:     sh.Vertex,
				Fragment:   sh.Fragment,
				Defines:    params.defines(),
				Attributes: params.attributeNames(nil),
			}
		}
	}

	mp.clips = !m.Model.IsShader() || m.Shader.Clipping
	if mp.clips {
		mp.numClippingPlanes = r.clipping.NumPlanes
		mp.numIntersection = r.clipping.NumIntersection
		uniforms["clippingPlanes"] = r.clipping.uniform
	}
	mp.fog = fog
	mp.lightsHash = r.lights.hash
	mp.shaderVersion = params.ShaderVer
	if m.Lights {
		r.lights.bind(uniforms)
	}
	mp.uniforms = uniforms

	if programChange {
		src.Uniforms = uniformNames(uniforms)
		prog, err := r.programs.acquire(code, src)
		if err != nil {
			return err
		}
		mp.program = prog
	}
	return nil
}

func (r *Renderer) onMaterialDispose(m *material.Material) {
	mp, ok := r.props.materials[m]
	if !ok {
		return
	}
	r.programs.release(mp.program)
	delete(r.props.materials, m)
}

// needsRebuild reports whether the material's program no longer matches
// the frame's fog, lights, clipping or shader sources.
func (r *Renderer) needsRebuild(m *material.Material, mp *materialProperties, fog *scene.Fog) bool {
	switch {
	case m.NeedsUpdate, mp.program == nil:
		return true
	case m.Fog && mp.fog != fog:
		return true
	case m.Lights && mp.lightsHash != r.lights.hash:
		return true
	case mp.clips && (mp.numClippingPlanes != r.clipping.NumPlanes || mp.numIntersection != r.clipping.NumIntersection):
		return true
	case !m.Model.IsShader() && mp.shaderVersion != r.lib.Version():
		return true
	}
	return false
}

func usesCameraPosition(m *material.Material) bool {
	switch m.Model {
	case material.Shader, material.RawShader, material.Phong, material.Toon, material.Standard, material.Physical:
		return true
	}
	return m.EnvMap != nil
}

func usesViewMatrix(m *material.Material) bool {
	switch m.Model {
	case material.Shader, material.RawShader, material.Basic, material.Lambert,
		material.Phong, material.Toon, material.Standard, material.Physical:
		return true
	}
	return m.Skinning
}

// setProgram binds the material's program for drawing node from cam and
// uploads what changed since the last draw.
func (r *Renderer) setProgram(cam *scene.Camera, fog *scene.Fog, m *material.Material, node scene.Node) (*Program, error) {
	r.textures.resetUnits()
	mp := r.props.material(m)
	o := node.Obj()

	if r.clippingEnabled && (r.localClippingEnabled || cam != r.currentCamera) {
		useCache := cam == r.currentCamera && m.ID() == r.currentMaterialID
		// repeated state for the same camera and material skips the transform
		r.clipping.setState(m, cam, mp, useCache)
	}

	if r.needsRebuild(m, mp, fog) {
		if err := r.initMaterial(m, fog, node); err != nil {
			return nil, err
		}
		m.NeedsUpdate = false
		r.rebuilds++
	}

	prog := mp.program
	uniforms := mp.uniforms
	set := func(name string, v any) { r.uploader.value(prog, name, v) }

	var refreshProgram, refreshMaterial, refreshLights bool
	if r.state.UseProgram(prog.handle) {
		refreshProgram, refreshMaterial, refreshLights = true, true, true
	}
	if m.ID() != r.currentMaterialID {
		r.currentMaterialID = m.ID()
		refreshMaterial = true
	}

	if refreshProgram || cam != r.currentCamera {
		set("projectionMatrix", cam.ProjectionMatrix())
		if r.caps.LogarithmicDepthBuffer && cam.IsPerspective() {
			set("logDepthBufFC", 2/math32.Log2(float32(cam.Far)+1))
		}
		if cam != r.currentCamera {
			r.currentCamera = cam
			// new camera: lights and material uniforms depend on the view
			refreshMaterial = true
			refreshLights = true
		}
		if usesCameraPosition(m) {
			set("cameraPosition", cam.WorldPosition())
		}
		if usesViewMatrix(m) {
			set("viewMatrix", cam.ViewMatrix())
		}
	}

	if m.Skinning {
		if err := r.setSkinning(prog, node); err != nil {
			return nil, err
		}
	}

	if refreshMaterial {
		set("toneMappingExposure", r.ToneMappingExposure)
		set("toneMappingWhitePoint", r.ToneMappingWhitePoint)
		if m.Lights {
			r.lights.markNeedsUpdate(uniforms, refreshLights)
		}
		if fog != nil && m.Fog {
			refreshFog(uniforms, fog)
		}
		r.refreshMaterial(uniforms, m)
		if err := r.uploader.upload(prog, uniforms); err != nil {
			return nil, err
		}
	} else if m.Model.IsShader() && m.Shader.UniformsNeedUpdate {
		if err := r.uploader.upload(prog, uniforms); err != nil {
			return nil, err
		}
	}
	if m.Model.IsShader() {
		m.Shader.UniformsNeedUpdate = false
	}

	world := o.MatrixWorld()
	modelView := cam.ViewMatrix().Mul(world)
	set("modelViewMatrix", modelView)
	set("normalMatrix", math3d.NormalMatrix(modelView))
	set("modelMatrix", world)
	return prog, nil
}

// setSkinning uploads bind matrices and bones, through a float texture
// when the device can sample one in the vertex stage.
func (r *Renderer) setSkinning(prog *Program, node scene.Node) error {
	sm, ok := node.(*scene.SkinnedMesh)
	if !ok {
		return nil
	}
	set := func(name string, v any) { r.uploader.value(prog, name, v) }
	set("bindMatrix", sm.BindMatrix)
	set("bindMatrixInverse", sm.BindMatrixInverse)

	sk := sm.Skeleton
	if sk == nil {
		return nil
	}
	if !r.caps.FloatVertexTextures {
		set("boneMatrices", sk.BoneMatrices)
		return nil
	}
	unit, err := r.textures.allocateUnit()
	if err != nil {
		return err
	}
	size := r.textures.setBoneTexture(sk, unit)
	set("boneTexture", int32(unit))
	set("boneTextureSize", int32(size))
	return nil
}
