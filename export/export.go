// Package export encodes point clouds as ASCII OBJ, PLY and PCD files.
//
// Every format writes one line per point in point cloud order. Binary and
// compressed variants are not supported.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/soypat/surfcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// Encoder writes a point cloud to a byte stream.
type Encoder interface {
	Encode(w io.Writer, pc surfcloud.PointCloud) error
}

var encoders = map[string]Encoder{
	"obj": OBJ{},
	"ply": PLY{},
	"pcd": PCD{},
}

// Lookup returns the encoder registered under name. Names are case
// insensitive and may carry a leading dot, so file extensions work too.
func Lookup(name string) (Encoder, error) {
	key := strings.ToLower(strings.TrimPrefix(name, "."))
	enc, ok := encoders[key]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %v", surfcloud.ErrFormat, name, Formats())
	}
	return enc, nil
}

// Formats returns the sorted names of the registered encoders.
func Formats() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteFile encodes pc with the named format to path. The file is written
// to a temporary file in the same directory and renamed into place so a
// failed write never leaves a partial file at path. The written file has
// mode 0644.
func WriteFile(path, format string, pc surfcloud.PointCloud) (err error) {
	enc, err := Lookup(format)
	if err != nil {
		return err
	}
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	bw := bufio.NewWriter(tmp)
	if err = enc.Encode(bw, pc); err != nil {
		return fmt.Errorf("%w: encoding %s: %v", surfcloud.ErrResource, path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
	}
	// CreateTemp opens files with mode 0600.
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
	}
	return nil
}

// appendVec appends the three components of v separated by spaces.
// Values are formatted with the shortest representation that round trips.
func appendVec(b []byte, v r3.Vec) []byte {
	b = strconv.AppendFloat(b, v.X, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, v.Y, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, v.Z, 'g', -1, 64)
	return b
}
