package webgpu

import (
	"fmt"

	"github.com/achilleasa/polaris-bsp/tracer"
	"github.com/cogentcore/webgpu/wgpu"
)

type encoder struct {
	dev *Device
	enc *wgpu.CommandEncoder
}

func (e *encoder) WriteTimestamp(index uint32) error {
	if e.dev.timestamps == nil {
		return ErrNoTimestamps
	}
	return e.dev.timestamps.write(e.enc, index)
}

func (e *encoder) ResolveTimestamps() error {
	if e.dev.timestamps == nil {
		return ErrNoTimestamps
	}
	return e.dev.timestamps.resolve(e.enc)
}

func (e *encoder) DrawFrame(target tracer.Image) error {
	if target > tracer.AccumulationSource {
		return fmt.Errorf("webgpu: unknown image %d", target)
	}

	pass := e.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "frame pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       e.dev.views[target],
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
		},
	})
	defer pass.Release()

	pass.SetPipeline(e.dev.pipeline)
	pass.SetBindGroup(0, e.dev.bindGroups[target], nil)
	pass.Draw(4, 1, 0, 0)
	return pass.End()
}

func (e *encoder) CopyImage(src, dst tracer.Image) error {
	if src == dst || src > tracer.AccumulationSource || dst > tracer.AccumulationSource {
		return tracer.ErrImageAlias
	}

	err := e.enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture: e.dev.textures[src],
			Aspect:  wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture: e.dev.textures[dst],
			Aspect:  wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              e.dev.opts.Width,
			Height:             e.dev.opts.Height,
			DepthOrArrayLayers: 1,
		},
	)
	if err != nil {
		return fmt.Errorf("webgpu: image copy: %w", err)
	}
	return nil
}

func (e *encoder) Submit() error {
	cmdBuffer, err := e.enc.Finish(nil)
	if err != nil {
		return err
	}
	defer cmdBuffer.Release()

	e.dev.Lock()
	e.dev.queue.Submit(cmdBuffer)
	e.dev.Unlock()
	return nil
}

func (e *encoder) Release() {
	e.enc.Release()
}
