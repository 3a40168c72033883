package writer

import (
	"archive/zip"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/achilleasa/polaris-bsp/asset/scene"
	"github.com/achilleasa/polaris-bsp/log"
)

type zipSceneWriter struct {
	logger    log.Logger
	sceneFile string
}

func newZipSceneWriter(sceneFile string) *zipSceneWriter {
	return &zipSceneWriter{
		logger:    log.New("zip writer"),
		sceneFile: sceneFile,
	}
}

// Write the scene header and each scene buffer as separate zip entries.
func (w *zipSceneWriter) Write(sc *scene.Scene) (err error) {
	w.logger.Noticef(`writing compiled scene to "%s"`, w.sceneFile)
	start := time.Now()

	zipFile, err := os.Create(w.sceneFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := zipFile.Close(); err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(zipFile)

	header := scene.Header{
		Bounds:       sc.Bounds,
		LightIndices: sc.LightIndices,
		Counts:       sc.Counts,
	}
	hw, err := zw.Create(scene.HeaderFile)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(hw).Encode(&header); err != nil {
		return fmt.Errorf("zipSceneWriter: failed to encode %s: %w", scene.HeaderFile, err)
	}

	for _, name := range scene.BufferNames {
		data, err := sc.Buffer(name)
		if err != nil {
			return err
		}
		bw, err := zw.Create(scene.BufferFile(name))
		if err != nil {
			return err
		}
		if _, err = bw.Write(data); err != nil {
			return err
		}
	}

	if err = zw.Close(); err != nil {
		return err
	}

	w.logger.Noticef("wrote scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}
