package vlink

import (
	"github.com/pkg/errors"

	"vlink/packet"
)

// CarState is a car's streamed state snapshot. Angles are degrees,
// positions meters in the local ENU frame, speed m/s.
type CarState struct {
	FwMajor uint8
	FwMinor uint8
	Roll    float64
	Pitch   float64
	Yaw     float64
	Accel   [3]float64
	Gyro    [3]float64
	Mag     [3]float64
	PX      float64
	PY      float64
	Speed   float64
	Vin     float64
	TempFet float64
	McFault uint8
	PXGps   float64
	PYGps   float64
	ApGoalX float64
	ApGoalY float64
	ApRad   float64
	MsToday int32
}

// MultirotorState is a multirotor's streamed state snapshot.
type MultirotorState struct {
	FwMajor uint8
	FwMinor uint8
	Roll    float64
	Pitch   float64
	Yaw     float64
	Accel   [3]float64
	Gyro    [3]float64
	Mag     [3]float64
	PX      float64
	PY      float64
	PZ      float64
	Speed   float64
	Vin     float64
	PXGps   float64
	PYGps   float64
	ApGoalX float64
	ApGoalY float64
	MsToday int32
}

// BaseStatus is the mote's periodic base station report: whether RTCM
// output is running plus the latest survey-in snapshot.
type BaseStatus struct {
	Started bool
	Dur     uint32
	MeanAcc float64
	ObsUsed uint32
	Valid   bool
	Active  bool
}

var errShortPayload = errors.New("truncated payload")

func vec3(r *packet.Reader, scale float64) [3]float64 {
	return [3]float64{r.Float32(scale), r.Float32(scale), r.Float32(scale)}
}

// ParseCarState decodes a CarState payload.
func ParseCarState(payload []byte) (CarState, error) {
	r := packet.NewReader(payload)
	s := CarState{
		FwMajor: r.Uint8(),
		FwMinor: r.Uint8(),
		Roll:    r.Float32(1e6),
		Pitch:   r.Float32(1e6),
		Yaw:     r.Float32(1e6),
		Accel:   vec3(r, 1e6),
		Gyro:    vec3(r, 1e6),
		Mag:     vec3(r, 1e6),
		PX:      r.Float32(1e4),
		PY:      r.Float32(1e4),
		Speed:   r.Float32(1e6),
		Vin:     r.Float32(1e6),
		TempFet: r.Float32(1e6),
		McFault: r.Uint8(),
		PXGps:   r.Float32(1e4),
		PYGps:   r.Float32(1e4),
		ApGoalX: r.Float32(1e4),
		ApGoalY: r.Float32(1e4),
		ApRad:   r.Float32(1e6),
		MsToday: r.Int32(),
	}
	if !r.Ok() {
		return CarState{}, errShortPayload
	}
	return s, nil
}

// EncodeCarState packs a CarState payload.
func EncodeCarState(s CarState) []byte {
	w := &packet.Writer{}
	w.Uint8(s.FwMajor)
	w.Uint8(s.FwMinor)
	w.Float32(s.Roll, 1e6)
	w.Float32(s.Pitch, 1e6)
	w.Float32(s.Yaw, 1e6)
	for _, v := range [][3]float64{s.Accel, s.Gyro, s.Mag} {
		w.Float32(v[0], 1e6)
		w.Float32(v[1], 1e6)
		w.Float32(v[2], 1e6)
	}
	w.Float32(s.PX, 1e4)
	w.Float32(s.PY, 1e4)
	w.Float32(s.Speed, 1e6)
	w.Float32(s.Vin, 1e6)
	w.Float32(s.TempFet, 1e6)
	w.Uint8(s.McFault)
	w.Float32(s.PXGps, 1e4)
	w.Float32(s.PYGps, 1e4)
	w.Float32(s.ApGoalX, 1e4)
	w.Float32(s.ApGoalY, 1e4)
	w.Float32(s.ApRad, 1e6)
	w.Int32(s.MsToday)
	return w.Bytes()
}

// ParseMultirotorState decodes a MultirotorState payload.
func ParseMultirotorState(payload []byte) (MultirotorState, error) {
	r := packet.NewReader(payload)
	s := MultirotorState{
		FwMajor: r.Uint8(),
		FwMinor: r.Uint8(),
		Roll:    r.Float32(1e6),
		Pitch:   r.Float32(1e6),
		Yaw:     r.Float32(1e6),
		Accel:   vec3(r, 1e6),
		Gyro:    vec3(r, 1e6),
		Mag:     vec3(r, 1e6),
		PX:      r.Float32(1e4),
		PY:      r.Float32(1e4),
		PZ:      r.Float32(1e4),
		Speed:   r.Float32(1e6),
		Vin:     r.Float32(1e6),
		PXGps:   r.Float32(1e4),
		PYGps:   r.Float32(1e4),
		ApGoalX: r.Float32(1e4),
		ApGoalY: r.Float32(1e4),
		MsToday: r.Int32(),
	}
	if !r.Ok() {
		return MultirotorState{}, errShortPayload
	}
	return s, nil
}

// EncodeMultirotorState packs a MultirotorState payload.
func EncodeMultirotorState(s MultirotorState) []byte {
	w := &packet.Writer{}
	w.Uint8(s.FwMajor)
	w.Uint8(s.FwMinor)
	w.Float32(s.Roll, 1e6)
	w.Float32(s.Pitch, 1e6)
	w.Float32(s.Yaw, 1e6)
	for _, v := range [][3]float64{s.Accel, s.Gyro, s.Mag} {
		w.Float32(v[0], 1e6)
		w.Float32(v[1], 1e6)
		w.Float32(v[2], 1e6)
	}
	w.Float32(s.PX, 1e4)
	w.Float32(s.PY, 1e4)
	w.Float32(s.PZ, 1e4)
	w.Float32(s.Speed, 1e6)
	w.Float32(s.Vin, 1e6)
	w.Float32(s.PXGps, 1e4)
	w.Float32(s.PYGps, 1e4)
	w.Float32(s.ApGoalX, 1e4)
	w.Float32(s.ApGoalY, 1e4)
	w.Int32(s.MsToday)
	return w.Bytes()
}

// ParseBaseStatus decodes a BaseStatus payload.
func ParseBaseStatus(payload []byte) (BaseStatus, error) {
	r := packet.NewReader(payload)
	s := BaseStatus{
		Started: r.Uint8() != 0,
		Dur:     r.Uint32(),
		MeanAcc: r.Float32(1e3),
		ObsUsed: r.Uint32(),
		Valid:   r.Uint8() != 0,
		Active:  r.Uint8() != 0,
	}
	if !r.Ok() {
		return BaseStatus{}, errShortPayload
	}
	return s, nil
}

// EncodeBaseStatus packs a BaseStatus payload.
func EncodeBaseStatus(s BaseStatus) []byte {
	w := &packet.Writer{}
	started := uint8(0)
	if s.Started {
		started = 1
	}
	w.Uint8(started)
	w.Uint32(s.Dur)
	w.Float32(s.MeanAcc, 1e3)
	w.Uint32(s.ObsUsed)
	valid, active := uint8(0), uint8(0)
	if s.Valid {
		valid = 1
	}
	if s.Active {
		active = 1
	}
	w.Uint8(valid)
	w.Uint8(active)
	return w.Bytes()
}
