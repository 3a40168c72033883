package renderer

import "github.com/achilleasa/polaris-bsp/tracer"

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Shading controls; zero values keep the frame state defaults.
	SubdivisionLevel uint32
	CamConst         float32
	Gamma            float32
	MattShader       int
	GlassShader      int

	// Accumulate frames until FrameCap is reached. If disabled a single
	// frame is rendered.
	Progressive bool
	FrameCap    uint32

	BlackBackground bool

	// Jitter seed.
	Seed uint64

	// Image filename for the rendered frame. Left empty to skip writing.
	OutputFile string

	// Device selection.
	BlackListedDevices []string
	DisableTimestamps  bool
}

// DefaultOptions returns the options used by the render command.
func DefaultOptions() Options {
	return Options{
		FrameW:           512,
		FrameH:           512,
		SubdivisionLevel: 1,
		Gamma:            1.5,
		MattShader:       -1,
		GlassShader:      -1,
		Progressive:      true,
		FrameCap:         tracer.DefaultFrameCap,
		OutputFile:       "frame.png",
	}
}

// Apply the shading overrides to fs.
func (opts Options) apply(fs *tracer.FrameState) error {
	params := []struct {
		name  string
		value float32
		set   bool
	}{
		{tracer.ParamSubdivisionLevel, float32(opts.SubdivisionLevel), opts.SubdivisionLevel != 0},
		{tracer.ParamCamConst, opts.CamConst, opts.CamConst != 0},
		{tracer.ParamGamma, opts.Gamma, opts.Gamma != 0},
		{tracer.ParamMattShader, float32(opts.MattShader), opts.MattShader >= 0},
		{tracer.ParamGlassShader, float32(opts.GlassShader), opts.GlassShader >= 0},
	}
	for _, param := range params {
		if !param.set {
			continue
		}
		if err := fs.SetParameter(param.name, param.value); err != nil {
			return err
		}
	}

	fs.SetBlackBackground(opts.BlackBackground)
	return nil
}
