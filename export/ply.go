package export

import (
	"fmt"
	"io"

	"github.com/soypat/surfcloud"
)

// PLY writes an ASCII Stanford PLY vertex element. When the cloud carries
// normals each line also holds nx ny nz.
type PLY struct{}

func (PLY) Encode(w io.Writer, pc surfcloud.PointCloud) error {
	normals := pc.HasNormals()
	_, err := fmt.Fprintf(w, "ply\n"+
		"format ascii 1.0\n"+
		"element vertex %d\n"+
		"property float x\n"+
		"property float y\n"+
		"property float z\n", pc.Len())
	if err != nil {
		return err
	}
	if normals {
		_, err = io.WriteString(w, "property float nx\n"+
			"property float ny\n"+
			"property float nz\n")
		if err != nil {
			return err
		}
	}
	if _, err = io.WriteString(w, "end_header\n"); err != nil {
		return err
	}
	line := make([]byte, 0, 128)
	for i, p := range pc.Points {
		line = appendVec(line[:0], p)
		if normals {
			line = append(line, ' ')
			line = appendVec(line, pc.Normals[i])
		}
		line = append(line, '\n')
		if _, err = w.Write(line); err != nil {
			return err
		}
	}
	return nil
}
