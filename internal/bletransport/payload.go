package bletransport

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"wristlink/go-fleet/pkg/models"
)

var (
	errServiceMissing         = errors.New("peripheral service not found")
	errCharacteristicsMissing = errors.New("peripheral characteristics not found")
)

func timeNow() time.Time { return time.Now() }

// encodeConfigField frames one named config value as name NUL value. The
// peripheral treats the write as a full replacement of that field.
func encodeConfigField(name, value string) []byte {
	buf := make([]byte, 0, len(name)+1+len(value))
	buf = append(buf, name...)
	buf = append(buf, 0)
	buf = append(buf, value...)
	return buf
}

// encodeSample frames a data sample as unix-milli timestamp (8 bytes LE)
// followed by the IEEE 754 value (8 bytes LE).
func encodeSample(sample models.Sample) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[:8], uint64(sample.Timestamp.UnixMilli()))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(sample.Value))
	return buf
}
