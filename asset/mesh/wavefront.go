package mesh

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/polaris-bsp/asset"
	"github.com/achilleasa/polaris-bsp/log"
	"github.com/achilleasa/polaris-bsp/types"
)

const defaultMaterialName = ""

// Unique vertex attribute combination referenced by a face.
type vertexKey struct {
	position int
	normal   int
}

type wavefrontReader struct {
	logger log.Logger

	scale float32
	ccw   bool

	positionList []types.Vec3
	normalList   []types.Vec3

	mesh           *Mesh
	vertexLookup   map[vertexKey]uint32
	matNameToIndex map[string]int
	curMaterial    int
}

// Load reads a wavefront obj file (plus any referenced material libraries)
// from a local path or http(s) URL. Vertex positions are multiplied by scale.
// If ccw is false, face winding is reversed.
func Load(path string, scale float32, ccw bool) (*Mesh, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res, scale, ccw)
}

// Read parses a wavefront obj stream.
func Read(res *asset.Resource, scale float32, ccw bool) (*Mesh, error) {
	r := &wavefrontReader{
		logger:         log.New("wavefront reader"),
		scale:          scale,
		ccw:            ccw,
		mesh:           &Mesh{},
		vertexLookup:   make(map[vertexKey]uint32),
		matNameToIndex: make(map[string]int),
		curMaterial:    -1,
	}

	start := time.Now()
	if err := r.parse(res); err != nil {
		return nil, err
	}
	if err := r.mesh.Validate(); err != nil {
		return nil, fmt.Errorf("[%s] error: %s", res.Path(), err)
	}

	r.logger.Infof(
		"parsed %q in %d ms: %d vertices, %d triangles, %d materials, %d emissive triangles",
		res.Path(), time.Since(start).Nanoseconds()/1000000,
		len(r.mesh.Vertices), r.mesh.TriangleCount(), len(r.mesh.Materials), len(r.mesh.LightIndices),
	)
	return r.mesh, nil
}

func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	return fmt.Errorf("[%s: %d] error: %s", file, line, fmt.Sprintf(msgFormat, args...))
}

func (r *wavefrontReader) parse(res *asset.Resource) error {
	var lineNum int
	var err error

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "mtllib"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			libRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			err = r.parseMaterials(libRes)
			libRes.Close()
			if err != nil {
				return err
			}
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "usemtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			matIndex, exists := r.matNameToIndex[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `undefined material with name "%s"`, lineTokens[1])
			}
			r.curMaterial = matIndex
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.positionList = append(r.positionList, v.Mul(r.scale))
		case "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.normalList = append(r.normalList, v.Normalize())
		case "f":
			if err = r.parseFace(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
		}
	}

	if err = scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err)
	}
	return nil
}

// Parse a triangle or quad face. Each argument uses one of the formats
// v, v/t, v//n or v/t/n with 1-based or negative (relative to the end)
// indices. Texture coordinates are ignored.
func (r *wavefrontReader) parseFace(lineTokens []string) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d`, len(lineTokens)-1)
	}

	argCount := len(lineTokens) - 1
	var keys [4]vertexKey
	hasNormals := true
	for arg := 0; arg < argCount; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		pos, err := selectFaceCoordIndex(vTokens[0], len(r.positionList))
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err)
		}
		keys[arg] = vertexKey{position: pos, normal: -1}

		if len(vTokens) > 2 && vTokens[2] != "" {
			nrm, err := selectFaceCoordIndex(vTokens[2], len(r.normalList))
			if err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %s", arg, err)
			}
			keys[arg].normal = nrm
		} else {
			hasNormals = false
		}
	}

	if r.curMaterial == -1 {
		r.curMaterial = r.defaultMaterial()
	}

	triangles := [][3]int{{0, 1, 2}}
	if argCount == 4 {
		triangles = append(triangles, [3]int{0, 2, 3})
	}

	for _, corners := range triangles {
		if !r.ccw {
			corners[1], corners[2] = corners[2], corners[1]
		}

		var triIndices [3]uint32
		if hasNormals {
			for i, corner := range corners {
				triIndices[i] = r.sharedVertex(keys[corner])
			}
		} else {
			// Faces without normals get flat shaded vertices of their own
			p0 := r.positionList[keys[corners[0]].position]
			p1 := r.positionList[keys[corners[1]].position]
			p2 := r.positionList[keys[corners[2]].position]
			faceNormal := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
			for i, corner := range corners {
				triIndices[i] = r.appendVertex(r.positionList[keys[corner].position], faceNormal)
			}
		}

		tri := uint32(r.mesh.TriangleCount())
		r.mesh.Indices = append(r.mesh.Indices, triIndices[:]...)
		r.mesh.MaterialIndices = append(r.mesh.MaterialIndices, uint32(r.curMaterial))
		if r.mesh.Materials[r.curMaterial].IsEmissive() {
			r.mesh.LightIndices = append(r.mesh.LightIndices, tri)
		}
	}

	return nil
}

func (r *wavefrontReader) sharedVertex(key vertexKey) uint32 {
	if index, exists := r.vertexLookup[key]; exists {
		return index
	}
	index := r.appendVertex(r.positionList[key.position], r.normalList[key.normal])
	r.vertexLookup[key] = index
	return index
}

func (r *wavefrontReader) appendVertex(pos, normal types.Vec3) uint32 {
	r.mesh.Vertices = append(r.mesh.Vertices, pos)
	r.mesh.Normals = append(r.mesh.Normals, normal)
	return uint32(len(r.mesh.Vertices) - 1)
}

// Select (and lazily create) the material used by faces preceding any usemtl.
func (r *wavefrontReader) defaultMaterial() int {
	if matIndex, exists := r.matNameToIndex[defaultMaterialName]; exists {
		return matIndex
	}
	r.mesh.Materials = append(r.mesh.Materials, Material{
		Name:  defaultMaterialName,
		Color: types.XYZW(0.7, 0.7, 0.7, 1),
	})
	matIndex := len(r.mesh.Materials) - 1
	r.matNameToIndex[defaultMaterialName] = matIndex
	return matIndex
}

// Parse a wavefront material library.
func (r *wavefrontReader) parseMaterials(res *asset.Resource) error {
	var lineNum int
	var err error
	var curMaterial *Material

	r.logger.Debugf(`parsing material library "%s"`, res.Path())

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "newmtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			matName := lineTokens[1]
			if _, exists := r.matNameToIndex[matName]; exists {
				return r.emitError(res.Path(), lineNum, `material "%s" already defined`, matName)
			}
			r.mesh.Materials = append(r.mesh.Materials, Material{
				Name:  matName,
				Color: types.XYZW(0, 0, 0, 1),
			})
			r.matNameToIndex[matName] = len(r.mesh.Materials) - 1
			curMaterial = &r.mesh.Materials[len(r.mesh.Materials)-1]
			continue
		}

		if curMaterial == nil {
			return r.emitError(res.Path(), lineNum, `got "%s" without a "newmtl"`, lineTokens[0])
		}

		var v types.Vec3
		switch lineTokens[0] {
		case "Kd":
			if v, err = parseVec3(lineTokens); err == nil {
				curMaterial.Color = v.Vec4(curMaterial.Color[3])
			}
		case "Ke":
			if v, err = parseVec3(lineTokens); err == nil {
				curMaterial.Emission = v.Vec4(1)
			}
		case "d":
			curMaterial.Color[3], err = parseFloat32(lineTokens)
		default:
			// Material records only carry emission and color.
			r.logger.Debugf(`%s:%d: skipping "%s"`, res.Path(), lineNum, lineTokens[0])
		}

		if err != nil {
			return r.emitError(res.Path(), lineNum, "%s", err)
		}
	}

	return scanner.Err()
}

// Given an index for a face coord calculate the offset into the coord list.
// Negative indices reference elements from the end of the list.
func selectFaceCoordIndex(indexToken string, coordListLen int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = coordListLen + int(index)
	} else {
		offset = int(index - 1)
	}
	if offset < 0 || offset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return offset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}
	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
