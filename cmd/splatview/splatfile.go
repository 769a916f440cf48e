package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	splat "github.com/ath92/splat-renderer"
)

// splatRecordFloats is the field count of one on-disk splat record:
// centre(3) + radius(1) + normal(3) + colour(3) + opacity(1).
const splatRecordFloats = 11

// loadSplats reads a little-endian binary splat buffer: a uint32 record
// count, followed by that many fixed-width records of 11 float32 fields
// in the order centre, radius, normal, colour, opacity.
func loadSplats(path string) ([]splat.Splat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open splat file: %w", err)
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read splat count: %w", err)
	}

	splats := make([]splat.Splat, count)
	row := make([]float32, splatRecordFloats)
	for i := range splats {
		if err := binary.Read(f, binary.LittleEndian, &row); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil, fmt.Errorf("splat file truncated at record %d", i)
			}
			return nil, fmt.Errorf("read splat %d: %w", i, err)
		}
		splats[i] = splat.Splat{
			Centre:  [3]float32{row[0], row[1], row[2]},
			Radius:  row[3],
			Normal:  [3]float32{row[4], row[5], row[6]},
			Colour:  [3]float32{row[7], row[8], row[9]},
			Opacity: row[10],
		}
	}
	return splats, nil
}
