package abnormality

import "testing"

func TestAlarmActivatesAfterExactlyN(t *testing.T) {
	a := NewAlarmTracker(AlarmConfig{PThreshold: 0.7, NConsecutive: 3})
	for i := 1; i <= 2; i++ {
		if a.Update(0.9) {
			t.Fatalf("Expected inactive after %d readings", i)
		}
	}
	if !a.Update(0.9) {
		t.Fatalf("Expected active after 3 readings")
	}
	if !a.Update(0.95) || a.Count() != 4 {
		t.Errorf("Expected to stay active with count 4, got %d", a.Count())
	}
}

func TestAlarmResetsOnThresholdReading(t *testing.T) {
	a := NewAlarmTracker(AlarmConfig{PThreshold: 0.7, NConsecutive: 3})
	a.Update(0.9)
	a.Update(0.9)
	a.Update(0.9)
	if a.Update(0.7) {
		t.Errorf("Expected reading at threshold to deactivate")
	}
	if a.Count() != 0 {
		t.Errorf("Expected count 0, got %d", a.Count())
	}
	a.Update(0.9)
	a.Update(0.9)
	if a.Active() {
		t.Errorf("Expected streak to restart from zero")
	}
}

func TestAlarmReset(t *testing.T) {
	a := NewAlarmTracker(DefaultAlarmConfig())
	for i := 0; i < 5; i++ {
		a.Update(0.99)
	}
	a.Reset()
	if a.Active() || a.Count() != 0 {
		t.Errorf("Expected reset alarm, got count %d", a.Count())
	}
}
