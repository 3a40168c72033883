package reader

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/achilleasa/polaris-bsp/asset"
	"github.com/achilleasa/polaris-bsp/asset/scene"
	"github.com/achilleasa/polaris-bsp/log"
)

type zipSceneReader struct {
	logger log.Logger
}

func newZipSceneReader() *zipSceneReader {
	return &zipSceneReader{
		logger: log.New("zip reader"),
	}
}

// Read scene definition from zip file.
func (p *zipSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	p.logger.Noticef(`parsing compiled scene from "%s"`, sceneRes.Path())
	start := time.Now()

	// zip needs an io.ReaderAt so the archive is buffered in memory
	data, err := io.ReadAll(sceneRes)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	bufferFiles := make(map[string]scene.BufferName, len(scene.BufferNames))
	for _, name := range scene.BufferNames {
		bufferFiles[scene.BufferFile(name)] = name
	}

	sc := &scene.Scene{Buffers: make(map[scene.BufferName][]byte)}
	var header *scene.Header
	for _, f := range zr.File {
		bufName, isBuffer := bufferFiles[f.Name]
		if f.Name != scene.HeaderFile && !isBuffer {
			p.logger.Warningf("unknown file %s in scene zip file; skipping", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		if isBuffer {
			sc.Buffers[bufName], err = io.ReadAll(rc)
		} else {
			header = &scene.Header{}
			err = gob.NewDecoder(rc).Decode(header)
		}
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("zipSceneReader: failed to load %s: %w", f.Name, err)
		}
	}

	if header == nil {
		return nil, fmt.Errorf("zipSceneReader: missing %s", scene.HeaderFile)
	}
	for _, name := range scene.BufferNames {
		if _, err := sc.Buffer(name); err != nil {
			return nil, fmt.Errorf("zipSceneReader: %w", err)
		}
	}
	sc.Bounds = header.Bounds
	sc.LightIndices = header.LightIndices
	sc.Counts = header.Counts

	// Reject bundles whose tables do not reference each other consistently
	// before they reach the device.
	if _, _, err = scene.Decode(sc); err != nil {
		return nil, fmt.Errorf("zipSceneReader: %w", err)
	}

	p.logger.Noticef("loaded scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}
