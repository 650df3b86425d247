package flight

import (
	"context"
	"testing"

	"github.com/sunsetTH/Flight-Controller/internal/imu"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
)

type fakeSensor struct{}

func (fakeSensor) Read() (ports.RawSample, error) { return ports.RawSample{}, nil }

type fakeServo struct{}

func (fakeServo) Set(fl, fr, bl, br int32) error { return nil }

type fakeLED struct{ r, g, b uint8 }

func (f *fakeLED) Set(r, g, b uint8) { f.r, f.g, f.b = r, g, b }

func newTestLoop(t *testing.T, led *fakeLED) *Loop {
	t.Helper()
	pm := prefs.NewManager(context.Background(), &prefs.MemStore{})
	est := imu.New(1.0 / UpdateRateHz)
	ctrl := NewControllers(UpdateRateHz)
	cycle := &fakeBatteryCycle{count: 1}
	curve := func(count int32) int32 { return 1200 }
	return NewLoop(fakeSensor{}, fakeServo{}, &radio.Shared{}, led, nil, nil, cycle, curve, pm, est, ctrl, SensorScale{GyroToRadPerSec: 1, AccelToMPerSec2: 1})
}

func TestTickShowsStartupColorBeforeBatteryMonitorReady(t *testing.T) {
	led := &fakeLED{}
	l := newTestLoop(t, led)
	if !l.state.Prefs.UseBattMon {
		t.Fatal("test assumes UseBattMon defaults to true")
	}

	l.tick()

	want := StartupColor()
	if led.r != want.R || led.g != want.G || led.b != want.B {
		t.Fatalf("LED = {%d %d %d}, want StartupColor %+v while BatteryMonitorDelay is still counting down", led.r, led.g, led.b, want)
	}
}

func TestTickShowsArmingGestureColorDuringHold(t *testing.T) {
	led := &fakeLED{}
	l := newTestLoop(t, led)
	l.state.BatteryMonitorDelay = 0 // past the startup window so the gesture color isn't shadowed

	l.Radio.Publish(radioFrame(-900, -900, -900, 900, 0))
	l.tick()

	want := ArmingGestureColor()
	if led.r != want.R || led.g != want.G || led.b != want.B {
		t.Fatalf("LED = {%d %d %d}, want ArmingGestureColor %+v while the arm gesture is held", led.r, led.g, led.b, want)
	}
}
