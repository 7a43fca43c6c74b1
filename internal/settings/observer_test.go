package settings

import (
	"testing"

	"wristlink/go-fleet/pkg/models"
)

type resyncRecorder struct {
	marked []string
}

func (r *resyncRecorder) MarkNeedsResync(dev *models.Device) {
	r.marked = append(r.marked, dev.Address)
}

func TestOnSettingChangedFlagsBoundDevices(t *testing.T) {
	rec := &resyncRecorder{}
	o := NewObserver(rec, nil)

	a := &models.Device{Address: "AA:BB"}
	b := &models.Device{Address: "CC:DD"}
	o.Bind("display.textColor", a)
	o.Bind("display.textColor", b)
	o.Bind("ble.password", a)

	o.OnSettingChanged("display.textColor")
	if len(rec.marked) != 2 || rec.marked[0] != "AA:BB" || rec.marked[1] != "CC:DD" {
		t.Fatalf("marked = %v, want [AA:BB CC:DD]", rec.marked)
	}

	o.OnSettingChanged("ble.password")
	if len(rec.marked) != 3 || rec.marked[2] != "AA:BB" {
		t.Fatalf("marked = %v, want AA:BB appended", rec.marked)
	}
}

func TestUnknownKeyIsNoOp(t *testing.T) {
	rec := &resyncRecorder{}
	o := NewObserver(rec, nil)
	o.OnSettingChanged("unknown.key")
	if len(rec.marked) != 0 {
		t.Fatalf("marked = %v, want none", rec.marked)
	}
}

func TestUnbindStopsFanout(t *testing.T) {
	rec := &resyncRecorder{}
	o := NewObserver(rec, nil)
	o.Bind("display.textColor", &models.Device{Address: "AA:BB"})
	o.Unbind("display.textColor")
	o.OnSettingChanged("display.textColor")
	if len(rec.marked) != 0 {
		t.Fatalf("marked = %v, want none after unbind", rec.marked)
	}
}
