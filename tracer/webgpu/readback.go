package webgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/achilleasa/polaris-bsp/tracer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ReadImage copies img back to host memory and converts it to an 8-bit
// image applying the given display gamma.
func (d *Device) ReadImage(img tracer.Image, gamma float32) (*image.NRGBA, error) {
	if img > tracer.AccumulationSource {
		return nil, fmt.Errorf("webgpu: unknown image %d", img)
	}

	d.Lock()
	defer d.Unlock()

	width, height := d.opts.Width, d.opts.Height
	rowPitch := alignRowPitch(width * texelSize)
	size := uint64(rowPitch) * uint64(height)

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "image readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Release()

	err = enc.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture: d.textures[img],
			Aspect:  wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  rowPitch,
				RowsPerImage: height,
			},
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("webgpu: image readback: %w", err)
	}
	cmdBuffer, err := enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	d.queue.Submit(cmdBuffer)
	cmdBuffer.Release()

	data, err := mapRead(d.device, buf, size)
	if err != nil {
		return nil, err
	}
	return toNRGBA(data, int(width), int(height), int(rowPitch), gamma), nil
}

func alignRowPitch(bytes uint32) uint32 {
	align := uint32(wgpu.CopyBytesPerRowAlignment)
	return (bytes + align - 1) / align * align
}

// Convert rows of rgba32float texels into an 8-bit image.
func toNRGBA(data []byte, width, height, rowPitch int, gamma float32) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	invGamma := 1.0
	if gamma > 0 {
		invGamma = 1.0 / float64(gamma)
	}

	channel := func(off int) uint8 {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
		if v <= 0 || math.IsNaN(v) {
			return 0
		}
		v = math.Pow(v, invGamma)
		if v >= 1 {
			return 255
		}
		return uint8(v*255 + 0.5)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := y*rowPitch + x*texelSize
			out.SetNRGBA(x, y, color.NRGBA{
				R: channel(off),
				G: channel(off + 4),
				B: channel(off + 8),
				A: 255,
			})
		}
	}
	return out
}
