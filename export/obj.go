package export

import (
	"io"

	"github.com/soypat/surfcloud"
)

// OBJ writes a Wavefront OBJ vertex list, one "v x y z" line per point.
type OBJ struct{}

func (OBJ) Encode(w io.Writer, pc surfcloud.PointCloud) error {
	line := make([]byte, 0, 64)
	for _, p := range pc.Points {
		line = append(line[:0], "v "...)
		line = appendVec(line, p)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}
