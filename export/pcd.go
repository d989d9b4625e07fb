package export

import (
	"fmt"
	"io"

	"github.com/soypat/surfcloud"
)

// PCD writes an unorganized ASCII Point Cloud Library file with x y z fields.
type PCD struct{}

func (PCD) Encode(w io.Writer, pc surfcloud.PointCloud) error {
	n := pc.Len()
	_, err := fmt.Fprintf(w, "# .PCD v0.7 - Point Cloud Data file format\n"+
		"VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA ascii\n",
		n, n,
	)
	if err != nil {
		return err
	}
	line := make([]byte, 0, 64)
	for _, p := range pc.Points {
		line = appendVec(line[:0], p)
		line = append(line, '\n')
		if _, err = w.Write(line); err != nil {
			return err
		}
	}
	return nil
}
