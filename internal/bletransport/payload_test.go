package bletransport

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"wristlink/go-fleet/pkg/models"
)

func TestEncodeConfigField(t *testing.T) {
	got := encodeConfigField("textColor", "#FFFFFF")
	want := append(append([]byte("textColor"), 0), []byte("#FFFFFF")...)
	if !bytes.Equal(got, want) {
		t.Fatalf("frame = %v, want %v", got, want)
	}
}

func TestEncodeSample(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	got := encodeSample(models.Sample{Timestamp: ts, Value: 5.4})

	if len(got) != 16 {
		t.Fatalf("frame length = %d, want 16", len(got))
	}
	if ms := binary.LittleEndian.Uint64(got[:8]); ms != uint64(ts.UnixMilli()) {
		t.Fatalf("timestamp = %d, want %d", ms, ts.UnixMilli())
	}
	if v := math.Float64frombits(binary.LittleEndian.Uint64(got[8:])); v != 5.4 {
		t.Fatalf("value = %v, want 5.4", v)
	}
}
