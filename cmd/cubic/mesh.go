package main

import (
	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"

	"github.com/brendenhoffman/CubicEngine/render"
)

// loadMesh reads a Wavefront OBJ file into an indexed triangle list,
// triangle-fanning any larger faces. mtlPath may be empty.
func loadMesh(objPath, mtlPath string) (*render.Mesh, error) {
	decoder, err := obj.Decode(objPath, mtlPath)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", objPath)
	}

	mesh := &render.Mesh{}
	uniqueVertices := make(map[int]uint32)

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				addVertex(decoder, mesh, uniqueVertices, face, 0)
				addVertex(decoder, mesh, uniqueVertices, face, i-1)
				addVertex(decoder, mesh, uniqueVertices, face, i)
			}
		}
	}

	if len(mesh.Indices) == 0 {
		return nil, errors.Newf("%s contains no faces", objPath)
	}
	return mesh, nil
}

func addVertex(decoder *obj.Decoder, mesh *render.Mesh, uniqueVertices map[int]uint32, face obj.Face, faceIndex int) {
	vertInd := face.Vertices[faceIndex]
	index, vertexExists := uniqueVertices[vertInd]

	if !vertexExists {
		vert := render.Vertex{
			Position: [3]float32{
				decoder.Vertices[vertInd*3],
				decoder.Vertices[vertInd*3+1],
				decoder.Vertices[vertInd*3+2],
			},
			Color: [3]float32{1, 1, 1},
		}

		if uvInd := face.Uvs[faceIndex]; uvInd >= 0 {
			vert.UV = [2]float32{
				decoder.Uvs[uvInd*2],
				1.0 - decoder.Uvs[uvInd*2+1],
			}
		}

		index = uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, vert)
		uniqueVertices[vertInd] = index
	}

	mesh.Indices = append(mesh.Indices, index)
}
