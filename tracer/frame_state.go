package tracer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/achilleasa/polaris-bsp/types"
)

const (
	// Size of the uniform block in vec4 units. The last 7 are reserved.
	uniformVec4Count = 25

	// UniformSize is the byte size of the encoded FrameState.
	UniformSize = uniformVec4Count * 16

	// NoLight marks an unused light slot.
	NoLight uint32 = 0xffffffff
)

// Parameter names accepted by FrameState.SetParameter.
const (
	ParamCamConst             = "cam_const"
	ParamGamma                = "gamma"
	ParamMattShader           = "matt_shader"
	ParamGlassShader          = "glass_shader"
	ParamTextureLookup        = "texture_lookup"
	ParamTextureFiltering     = "texture_filtering"
	ParamSubdivisionLevel     = "subdivision_level"
	ParamTextureMagnification = "texture_magnification"
)

var (
	DefaultBackground = types.XYZ(0.1, 0.3, 0.6)
	BlackBackground   = types.XYZ(0, 0, 0)
)

// Camera is a pinhole camera.
type Camera struct {
	Eye    types.Vec3
	LookAt types.Vec3
	Up     types.Vec3
}

// Basis returns the normalized view direction and the two image plane
// axes b1 (right) and b2 (up).
func (c Camera) Basis() (viewDir, b1, b2 types.Vec3) {
	viewDir = c.LookAt.Sub(c.Eye).Normalize()
	b1 = viewDir.Cross(c.Up).Normalize()
	b2 = b1.Cross(viewDir)
	return viewDir, b1, b2
}

// Sphere is an analytic primitive traced alongside the mesh.
type Sphere struct {
	Center    types.Vec3
	Radius    float32
	Shader    float32
	IOR       float32
	Shininess float32
	Emission  types.Vec3
	Diffuse   types.Vec3
	Specular  types.Vec3
}

// Params are the user tunable shading controls.
type Params struct {
	CamConst             float32
	Gamma                float32
	MattShader           float32
	GlassShader          float32
	TextureLookup        float32
	TextureFiltering     float32
	SubdivisionLevel     int
	TextureMagnification float32
}

// FrameState holds everything the shader program needs to render a frame.
type FrameState struct {
	Width, Height int

	Camera Camera
	Params Params

	Background      types.Vec3
	BlackBackground bool

	// Number of frames accumulated so far. The next submission renders
	// with this value.
	Frame uint32

	LightIndices [2]uint32
	Spheres      [2]Sphere
}

// NewFrameState returns the default state for a width x height frame. The
// first two entries of lights are exposed to the shader for direct lighting.
func NewFrameState(width, height int, lights []uint32) *FrameState {
	fs := &FrameState{
		Width:  width,
		Height: height,
		Camera: Camera{
			Eye:    types.XYZ(27.7, 27.5, -57.0),
			LookAt: types.XYZ(27.7, 27.5, 0),
			Up:     types.XYZ(0, 1, 0),
		},
		Params: Params{
			CamConst:             1,
			Gamma:                1.5,
			MattShader:           1,
			GlassShader:          5,
			TextureLookup:        0,
			TextureFiltering:     1,
			SubdivisionLevel:     1,
			TextureMagnification: 1,
		},
		Background:   DefaultBackground,
		LightIndices: [2]uint32{NoLight, NoLight},
		Spheres: [2]Sphere{
			{
				Center: types.XYZ(15, 35, 42), Radius: 3,
				Shader: 9, IOR: 1.5, Shininess: 42,
				Specular: types.XYZ(0.1, 0.1, 0.1),
			},
			{
				Center: types.XYZ(42, 9, 10), Radius: 4,
				Shader: 9, IOR: 1.5, Shininess: 42,
				Specular: types.XYZ(0.1, 0.1, 0.1),
			},
		},
	}
	for i := 0; i < len(lights) && i < len(fs.LightIndices); i++ {
		fs.LightIndices[i] = lights[i]
	}
	return fs
}

// SetParameter updates a shading parameter by name.
func (fs *FrameState) SetParameter(name string, value float32) error {
	isWhole := value == float32(math.Trunc(float64(value)))

	switch name {
	case ParamCamConst:
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive; got %v", ErrInvalidParameter, name, value)
		}
		fs.Params.CamConst = value
	case ParamGamma:
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive; got %v", ErrInvalidParameter, name, value)
		}
		fs.Params.Gamma = value
	case ParamSubdivisionLevel:
		if !isWhole || value < 1 || value > MaxSubdivisions {
			return fmt.Errorf("%w: %s must be an integer in [1, %d]; got %v", ErrInvalidParameter, name, MaxSubdivisions, value)
		}
		fs.Params.SubdivisionLevel = int(value)
	case ParamMattShader, ParamGlassShader, ParamTextureLookup, ParamTextureFiltering:
		if !isWhole || value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer; got %v", ErrInvalidParameter, name, value)
		}
		switch name {
		case ParamMattShader:
			fs.Params.MattShader = value
		case ParamGlassShader:
			fs.Params.GlassShader = value
		case ParamTextureLookup:
			fs.Params.TextureLookup = value
		default:
			fs.Params.TextureFiltering = value
		}
	case ParamTextureMagnification:
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive; got %v", ErrInvalidParameter, name, value)
		}
		fs.Params.TextureMagnification = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return nil
}

// SetBlackBackground toggles between the default sky color and black.
func (fs *FrameState) SetBlackBackground(black bool) {
	fs.BlackBackground = black
	if black {
		fs.Background = BlackBackground
	} else {
		fs.Background = DefaultBackground
	}
}

// Aspect returns the frame aspect ratio.
func (fs *FrameState) Aspect() float32 {
	return float32(fs.Width) / float32(fs.Height)
}

// Uniforms encodes the state into the uniform block layout expected by the
// shader program.
func (fs *FrameState) Uniforms() []byte {
	buf := make([]byte, UniformSize)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
		off += 4
	}
	putVec3 := func(v types.Vec3, w float32) {
		putF32(v[0])
		putF32(v[1])
		putF32(v[2])
		putF32(w)
	}

	putF32(fs.Aspect())
	putF32(fs.Params.CamConst)
	putF32(fs.Params.Gamma)
	putU32(fs.Frame)

	putF32(fs.Params.MattShader)
	putF32(fs.Params.GlassShader)
	putF32(fs.Params.TextureLookup)
	putF32(fs.Params.TextureFiltering)

	putU32(uint32(fs.Params.SubdivisionLevel))
	putF32(fs.Params.TextureMagnification)
	putU32(fs.LightIndices[0])
	putU32(fs.LightIndices[1])

	viewDir, b1, b2 := fs.Camera.Basis()
	putVec3(fs.Camera.Eye, 0)
	putVec3(b1, 0)
	putVec3(b2, 0)
	putVec3(viewDir, 0)
	putVec3(fs.Background, 0)

	for _, sphere := range fs.Spheres {
		putVec3(sphere.Center, sphere.Radius)
		putF32(sphere.Shader)
		putF32(sphere.IOR)
		putF32(sphere.Shininess)
		putF32(0)
		putVec3(sphere.Emission, 0)
		putVec3(sphere.Diffuse, 0)
		putVec3(sphere.Specular, 0)
	}

	return buf
}
