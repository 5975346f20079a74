package shaderlib

const objectBlock = `
struct Object {
    projectionMatrix: mat4x4<f32>,
    modelViewMatrix: mat4x4<f32>,
    normalMatrix: mat3x3<f32>,
};
@group(0) @binding(0) var<uniform> object: Object;
`

const meshVertex = objectBlock + `
struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) normal: vec3<f32>,
    @location(1) uv: vec2<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) normal: vec3<f32>, @location(2) uv: vec2<f32>) -> VertexOut {
    var out: VertexOut;
    out.position = object.projectionMatrix * object.modelViewMatrix * vec4<f32>(position, 1.0);
    out.normal = normalize(object.normalMatrix * normal);
    out.uv = uv;
    return out;
}
`

const pointsVertex = objectBlock + `
struct Points {
    size: f32,
    scale: f32,
};
@group(1) @binding(1) var<uniform> points: Points;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) pointSize: f32,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> VertexOut {
    var out: VertexOut;
    let mv = object.modelViewMatrix * vec4<f32>(position, 1.0);
    out.position = object.projectionMatrix * mv;
    out.pointSize = points.size * (points.scale / -mv.z);
    return out;
}
`

const screenVertex = `
struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(1) uv: vec2<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(2) uv: vec2<f32>) -> VertexOut {
    var out: VertexOut;
    out.position = vec4<f32>(position.xy, 1.0, 1.0);
    out.uv = uv;
    return out;
}
`

const materialBlock = `
struct Material {
    diffuse: vec3<f32>,
    opacity: f32,
};
@group(1) @binding(0) var<uniform> material: Material;
`

const unlitFragment = materialBlock + `
@fragment
fn fs_main(@location(0) normal: vec3<f32>, @location(1) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(material.diffuse, material.opacity);
}
`

const litFragment = materialBlock + `
struct Lights {
    ambientLightColor: vec3<f32>,
    direction: vec3<f32>,
    color: vec3<f32>,
};
@group(2) @binding(0) var<uniform> lights: Lights;

@fragment
fn fs_main(@location(0) normal: vec3<f32>, @location(1) uv: vec2<f32>) -> @location(0) vec4<f32> {
    let d = max(dot(normalize(normal), lights.direction), 0.0);
    let c = material.diffuse * (lights.ambientLightColor + lights.color * d);
    return vec4<f32>(c, material.opacity);
}
`

const normalFragment = materialBlock + `
@fragment
fn fs_main(@location(0) normal: vec3<f32>, @location(1) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(normalize(normal) * 0.5 + vec3<f32>(0.5, 0.5, 0.5), material.opacity);
}
`

const depthFragment = `
@fragment
fn fs_main(@builtin(position) frag: vec4<f32>) -> @location(0) vec4<f32> {
    let z = frag.z;
    return vec4<f32>(z, z, z, 1.0);
}
`

const pointsFragment = materialBlock + `
@fragment
fn fs_main(@location(0) pointSize: f32) -> @location(0) vec4<f32> {
    return vec4<f32>(material.diffuse, material.opacity);
}
`

const screenFragment = materialBlock + `
@fragment
fn fs_main(@location(1) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(material.diffuse, material.opacity);
}
`
