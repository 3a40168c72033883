package webgpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/achilleasa/polaris-bsp/asset/scene"
	"github.com/achilleasa/polaris-bsp/log"
	"github.com/achilleasa/polaris-bsp/tracer"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	accumulationFormat = wgpu.TextureFormatRGBA32Float

	// Bytes per rgba32float texel.
	texelSize = 16

	// Bindings must not be empty.
	minBufferSize = 16
)

// Options configure device creation.
type Options struct {
	Width  uint32
	Height uint32

	// Adapters whose name contains any of these patterns are skipped.
	BlacklistedAdapters []string

	// Disable timestamp queries even if the adapter supports them.
	DisableTimestamps bool
}

// Device renders frames on a WebGPU adapter. It implements tracer.Device.
type Device struct {
	sync.Mutex

	logger log.Logger
	opts   Options
	info   AdapterInfo

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	pipeline *wgpu.RenderPipeline

	// Accumulation images indexed by tracer.Image.
	textures [2]*wgpu.Texture
	views    [2]*wgpu.TextureView

	// bindGroups[img] renders into img while sampling the other image.
	bindGroups [2]*wgpu.BindGroup

	buffers map[uint32]*wgpu.Buffer

	timestamps *timestampQueries
}

// New initializes a device, uploads the scene buffers and builds the frame
// pipeline. All failures are wrapped in tracer.ErrStartup.
func New(sc *scene.Scene, opts Options) (*Device, error) {
	dev := &Device{
		logger:  log.New("webgpu"),
		opts:    opts,
		buffers: make(map[uint32]*wgpu.Buffer),
	}

	err := dev.init(sc)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("%w: %w", tracer.ErrStartup, err)
	}
	return dev, nil
}

func (d *Device) init(sc *scene.Scene) error {
	if d.opts.Width == 0 || d.opts.Height == 0 {
		return fmt.Errorf("webgpu: invalid frame size %dx%d", d.opts.Width, d.opts.Height)
	}
	if err := validateShader(traceShaderSource); err != nil {
		return err
	}

	var err error
	d.instance = wgpu.CreateInstance(nil)
	if d.adapter, err = selectAdapter(d.instance, d.opts.BlacklistedAdapters); err != nil {
		return err
	}
	d.info = describeAdapter(d.adapter)

	var features []wgpu.FeatureName
	useTimestamps := d.info.Timestamps && !d.opts.DisableTimestamps
	if useTimestamps {
		features = append(features, wgpu.FeatureNameTimestampQuery)
	}

	d.device, err = d.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "polaris-bsp",
		RequiredFeatures: features,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return fmt.Errorf("webgpu: could not create device: %w", err)
	}
	d.queue = d.device.GetQueue()
	d.logger.Noticef("using adapter %s", d.info)

	if useTimestamps {
		if d.timestamps, err = newTimestampQueries(d.device); err != nil {
			return err
		}
	}

	if err = d.createTextures(); err != nil {
		return err
	}
	if err = d.createBuffers(sc); err != nil {
		return err
	}
	if err = d.createPipeline(); err != nil {
		return err
	}
	return d.createBindGroups()
}

func (d *Device) createTextures() error {
	for img := range d.textures {
		texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: tracer.Image(img).String(),
			Size: wgpu.Extent3D{
				Width:              d.opts.Width,
				Height:             d.opts.Height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        accumulationFormat,
			Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
				wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("webgpu: could not create %s: %w", tracer.Image(img), err)
		}
		d.textures[img] = texture

		if d.views[img], err = texture.CreateView(nil); err != nil {
			return fmt.Errorf("webgpu: could not create view for %s: %w", tracer.Image(img), err)
		}
	}
	return nil
}

func (d *Device) createBuffer(label string, size int, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	if size < minBufferSize {
		size = minBufferSize
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: could not allocate %d bytes for %s: %w", size, label, err)
	}
	return buf, nil
}

func (d *Device) createBuffers(sc *scene.Scene) error {
	var err error
	if d.buffers[scene.UniformSlot], err = d.createBuffer("uniforms", tracer.UniformSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if d.buffers[scene.JitterSlot], err = d.createBuffer("jitter", tracer.JitterTableSize, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}

	var total int
	for _, name := range scene.BufferNames {
		data, err := sc.Buffer(name)
		if err != nil {
			return err
		}

		slot := scene.BufferSlots[name]
		buf, err := d.createBuffer(string(name), len(data), wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		d.buffers[slot] = buf

		if len(data) != 0 {
			if err = d.queue.WriteBuffer(buf, 0, data); err != nil {
				return fmt.Errorf("webgpu: could not upload %s: %w", name, err)
			}
		}
		total += len(data)
	}
	d.logger.Infof("uploaded %d bytes of scene data", total)
	return nil
}

func (d *Device) createPipeline() error {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "trace.wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: traceShaderSource,
		},
	})
	if err != nil {
		return fmt.Errorf("webgpu: could not compile shader program: %w", err)
	}
	defer module.Release()

	d.pipeline, err = d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "frame pass",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: vertexEntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    accumulationFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleStrip,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("webgpu: could not create render pipeline: %w", err)
	}
	return nil
}

func (d *Device) createBindGroups() error {
	layout := d.pipeline.GetBindGroupLayout(0)
	defer layout.Release()

	for target := range d.bindGroups {
		history := d.views[1-target]
		entries := []wgpu.BindGroupEntry{
			{Binding: scene.AccumulationSlot, TextureView: history},
		}
		for slot, buf := range d.buffers {
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: slot,
				Buffer:  buf,
				Size:    wgpu.WholeSize,
			})
		}

		bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   "frame pass into " + tracer.Image(target).String(),
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("webgpu: could not create bind group: %w", err)
		}
		d.bindGroups[target] = bindGroup
	}
	return nil
}

// Close releases all device resources.
func (d *Device) Close() {
	d.Lock()
	defer d.Unlock()

	for img := range d.bindGroups {
		if d.bindGroups[img] != nil {
			d.bindGroups[img].Release()
			d.bindGroups[img] = nil
		}
	}
	for slot, buf := range d.buffers {
		buf.Release()
		delete(d.buffers, slot)
	}
	for img := range d.textures {
		if d.views[img] != nil {
			d.views[img].Release()
			d.views[img] = nil
		}
		if d.textures[img] != nil {
			d.textures[img].Release()
			d.textures[img] = nil
		}
	}
	if d.timestamps != nil {
		d.timestamps.release()
		d.timestamps = nil
	}
	if d.pipeline != nil {
		d.pipeline.Release()
		d.pipeline = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// Name returns the adapter description.
func (d *Device) Name() string {
	return d.info.String()
}

// SupportsTimestamps returns true if the device was created with timestamp
// query support.
func (d *Device) SupportsTimestamps() bool {
	return d.timestamps != nil
}

// WriteBuffer enqueues a write to the buffer bound at slot.
func (d *Device) WriteBuffer(slot uint32, data []byte) error {
	d.Lock()
	defer d.Unlock()

	buf, exists := d.buffers[slot]
	if !exists {
		return fmt.Errorf("%w %d", ErrUnknownSlot, slot)
	}
	if uint64(len(data)) > buf.GetSize() {
		return fmt.Errorf("%w: %d bytes into slot %d", ErrBufferOverflow, len(data), slot)
	}
	return d.queue.WriteBuffer(buf, 0, data)
}

// NewEncoder starts recording a command submission.
func (d *Device) NewEncoder() (tracer.Encoder, error) {
	d.Lock()
	defer d.Unlock()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	return &encoder{dev: d, enc: enc}, nil
}

// ReadTimestamps blocks until the last resolved timestamps are available.
func (d *Device) ReadTimestamps(ctx context.Context) (uint64, uint64, error) {
	if d.timestamps == nil {
		return 0, 0, ErrNoTimestamps
	}

	d.Lock()
	defer d.Unlock()
	return d.timestamps.read(ctx, d.device)
}

// Wait blocks until the queue is idle.
func (d *Device) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.Lock()
	defer d.Unlock()
	d.device.Poll(true, nil)
	return nil
}
