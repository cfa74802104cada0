package vlink

import (
	"context"

	"vlink/packet"
)

// Typed command wrappers. Acknowledged commands park the caller until the
// vehicle answers or the retry budget runs out.

// GetState queries a car's state snapshot.
func (l *Link) GetState(ctx context.Context, addr uint8) (CarState, error) {
	timeout, retries := l.ackPolicy()
	ack, err := l.router.SendForAck(ctx, addr, packet.CmdGetState, nil, timeout, retries)
	if err != nil {
		return CarState{}, err
	}
	return ParseCarState(ack)
}

// GetMultirotorState queries a multirotor's state snapshot.
func (l *Link) GetMultirotorState(ctx context.Context, addr uint8) (MultirotorState, error) {
	timeout, retries := l.ackPolicy()
	ack, err := l.router.SendForAck(ctx, addr, packet.CmdMrGetState, nil, timeout, retries)
	if err != nil {
		return MultirotorState{}, err
	}
	return ParseMultirotorState(ack)
}

// SetPos overrides the vehicle's position estimate (meters, degrees).
func (l *Link) SetPos(ctx context.Context, addr uint8, x, y, angle float64) error {
	w := &packet.Writer{}
	w.Float32(x, 1e4)
	w.Float32(y, 1e4)
	w.Float32(angle, 1e6)
	timeout, retries := l.ackPolicy()
	_, err := l.router.SendForAckCmd(ctx, addr, packet.CmdSetPos, packet.CmdSetPosAck,
		w.Bytes(), timeout, retries)
	return err
}

// RcControl sends a manual control input without expecting an ack.
func (l *Link) RcControl(addr uint8, mode uint8, value, steering float64) error {
	w := &packet.Writer{}
	w.Uint8(mode)
	w.Float32(value, 1e4)
	w.Float32(steering, 1e6)
	return l.router.Send(addr, packet.CmdRcControl, w.Bytes())
}

// EmergencyStop halts a vehicle, or all of them with IDAll.
func (l *Link) EmergencyStop(addr uint8) error {
	return l.router.Send(addr, packet.CmdEmergencyStop, nil)
}

// Terminal sends a terminal command line; the reply arrives as Printf
// traffic.
func (l *Link) Terminal(addr uint8, cmd string) error {
	return l.router.Send(addr, packet.CmdTerminalCmd, []byte(cmd))
}

// SetMainConfig uploads a configuration blob. The blob layout is the
// vehicle firmware's business; the link carries it opaquely.
func (l *Link) SetMainConfig(ctx context.Context, addr uint8, cfg []byte) error {
	timeout, retries := l.ackPolicy()
	_, err := l.router.SendForAck(ctx, addr, packet.CmdSetMainConfig, cfg, timeout, retries)
	return err
}

// MainConfig downloads the vehicle's active configuration blob.
func (l *Link) MainConfig(ctx context.Context, addr uint8) ([]byte, error) {
	timeout, retries := l.ackPolicy()
	return l.router.SendForAck(ctx, addr, packet.CmdGetMainConfig, nil, timeout, retries)
}

// MainConfigDefault downloads the vehicle's default configuration blob.
func (l *Link) MainConfigDefault(ctx context.Context, addr uint8) ([]byte, error) {
	timeout, retries := l.ackPolicy()
	return l.router.SendForAck(ctx, addr, packet.CmdGetMainConfigDef, nil, timeout, retries)
}

// SendRtcmUsb broadcasts an RTCM correction frame to every vehicle.
func (l *Link) SendRtcmUsb(data []byte) error {
	return l.router.Send(packet.IDAll, packet.CmdSendRtcmUsb, data)
}

// StartUbxBase asks the radio mote to start its RTK base station. Status
// then arrives via the BaseStatus callback.
func (l *Link) StartUbxBase(ctx context.Context) error {
	timeout, retries := l.ackPolicy()
	_, err := l.router.SendForAckCmd(ctx, packet.IDMote, packet.CmdMoteUbxStartBase,
		packet.CmdMoteUbxStartBaseAck, nil, timeout, retries)
	return err
}
