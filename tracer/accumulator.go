package tracer

import "fmt"

// Accumulator ping-pongs the two accumulation images. Each frame renders into
// the target while sampling the source; Advance then copies the target into
// the source so the next frame reads the updated history.
type Accumulator struct {
	target Image
	source Image
}

// NewAccumulator returns an accumulator for the given images which must not
// alias each other.
func NewAccumulator(target, source Image) (*Accumulator, error) {
	if target == source {
		return nil, ErrImageAlias
	}
	return &Accumulator{target: target, source: source}, nil
}

// Target returns the image written by the frame pass.
func (a *Accumulator) Target() Image {
	return a.target
}

// Source returns the image holding the accumulated history.
func (a *Accumulator) Source() Image {
	return a.source
}

// Advance submits a full copy of the written image into the history image and
// returns the image the next frame will read. It must only be called after
// the frame pass was submitted successfully.
func (a *Accumulator) Advance(dev Device) (Image, error) {
	enc, err := dev.NewEncoder()
	if err != nil {
		return a.source, fmt.Errorf("accumulation copy: %w", err)
	}
	defer enc.Release()

	if err = enc.CopyImage(a.target, a.source); err != nil {
		return a.source, fmt.Errorf("accumulation copy: %w", err)
	}
	if err = enc.Submit(); err != nil {
		return a.source, fmt.Errorf("accumulation copy: %w", err)
	}
	return a.source, nil
}
