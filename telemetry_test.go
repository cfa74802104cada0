package vlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCarStateRoundTrip(t *testing.T) {
	want := CarState{
		FwMajor: 2, FwMinor: 1,
		Roll: -12.5, Pitch: 3.25, Yaw: 181.5,
		Accel: [3]float64{0.125, -0.25, 9.5},
		Gyro:  [3]float64{1.5, 0, -1.5},
		Mag:   [3]float64{0.25, 0.5, -0.75},
		PX:    102.5, PY: -33.25,
		Speed: 4.5, Vin: 12.25, TempFet: 41.5,
		McFault: 3,
		PXGps:   102.25, PYGps: -33.5,
		ApGoalX: 150.0, ApGoalY: -10.0, ApRad: 1.5,
		MsToday: 36000123,
	}

	got, err := ParseCarState(EncodeCarState(want))
	assert.NoError(t, err)
	assert.Equal(t, want.FwMajor, got.FwMajor)
	assert.Equal(t, want.McFault, got.McFault)
	assert.Equal(t, want.MsToday, got.MsToday)
	assert.InDelta(t, want.Roll, got.Roll, 1e-5)
	assert.InDelta(t, want.Yaw, got.Yaw, 1e-5)
	assert.InDelta(t, want.Gyro[2], got.Gyro[2], 1e-5)
	assert.InDelta(t, want.PX, got.PX, 1e-3)
	assert.InDelta(t, want.PYGps, got.PYGps, 1e-3)
	assert.InDelta(t, want.ApRad, got.ApRad, 1e-5)
}

func TestMultirotorStateRoundTrip(t *testing.T) {
	want := MultirotorState{
		FwMajor: 1,
		Roll:    0.5, Pitch: -0.5, Yaw: 45.25,
		PX: 5.5, PY: -2.25, PZ: 12.75,
		Speed: 1.25, Vin: 15.5,
		MsToday: 100,
	}

	got, err := ParseMultirotorState(EncodeMultirotorState(want))
	assert.NoError(t, err)
	assert.InDelta(t, want.PZ, got.PZ, 1e-3)
	assert.InDelta(t, want.Yaw, got.Yaw, 1e-5)
	assert.Equal(t, want.MsToday, got.MsToday)
}

func TestParseStateTruncated(t *testing.T) {
	_, err := ParseCarState([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = ParseMultirotorState(nil)
	assert.Error(t, err)
}

func TestBaseStatusRoundTrip(t *testing.T) {
	want := BaseStatus{
		Started: true,
		Dur:     240,
		MeanAcc: 1.25,
		ObsUsed: 238,
		Valid:   false,
		Active:  true,
	}

	got, err := ParseBaseStatus(EncodeBaseStatus(want))
	assert.NoError(t, err)
	assert.Equal(t, want.Started, got.Started)
	assert.Equal(t, want.Dur, got.Dur)
	assert.InDelta(t, want.MeanAcc, got.MeanAcc, 1e-3)
	assert.Equal(t, want.ObsUsed, got.ObsUsed)
	assert.False(t, got.Valid)
	assert.True(t, got.Active)
}
