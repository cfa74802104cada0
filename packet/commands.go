package packet

// Command identifies a vehicle link command. The id space is a single flat
// enumeration shared by all vehicle types, partitioned by numeric range:
// general 0-49, common vehicle 50-99, car 120+, multirotor 160+, mote 200+.
// Ranges must never overlap when extended.
type Command uint8

const (
	// General commands
	CmdPrintf      Command = 0
	CmdTerminalCmd Command = 1

	// Common vehicle commands
	CmdVescFwd          Command = 50
	CmdSetPos           Command = 51
	CmdSetPosAck        Command = 52
	CmdSetEnuRef        Command = 53
	CmdGetEnuRef        Command = 54
	CmdApAddPoints      Command = 55
	CmdApRemoveLast     Command = 56
	CmdApClearPoints    Command = 57
	CmdApSetActive      Command = 58
	CmdApReplaceRoute   Command = 59
	CmdSendRtcmUsb      Command = 60
	CmdSendNmeaRadio    Command = 61
	CmdSetYawOffset     Command = 62
	CmdSetYawOffsetAck  Command = 63
	CmdLogLineUsb       Command = 64
	CmdPlotInit         Command = 65
	CmdPlotData         Command = 66
	CmdSetMsToday       Command = 67
	CmdSetSystemTime    Command = 68
	CmdSetSystemTimeAck Command = 69
	CmdRebootSystem     Command = 70
	CmdRebootSystemAck  Command = 71
	CmdRadarSetupSet    Command = 72
	CmdRadarSetupGet    Command = 73
	CmdRadarSamples     Command = 74
	CmdDwSample         Command = 75
	CmdEmergencyStop    Command = 76
	CmdSetMainConfig    Command = 77
	CmdGetMainConfig    Command = 78
	CmdGetMainConfigDef Command = 79

	// Car commands
	CmdGetState       Command = 120
	CmdRcControl      Command = 121
	CmdSetServoDirect Command = 122

	// Multirotor commands
	CmdMrGetState      Command = 160
	CmdMrRcControl     Command = 161
	CmdMrOverridePower Command = 162

	// Mote commands
	CmdMoteUbxStartBase    Command = 200
	CmdMoteUbxStartBaseAck Command = 201
	CmdMoteUbxBaseStatus   Command = 202
)

// Reserved addresses. Addresses 0-253 identify individual vehicles.
const (
	// IDAll broadcasts to every vehicle on the link.
	IDAll uint8 = 255
	// IDMote addresses the radio mote bridge itself.
	IDMote uint8 = 254
	// IDRtcm is the raw RTCM correction passthrough address. Same value as
	// the RTCM3 preamble byte.
	IDRtcm uint8 = 211
)

// Mote bridge sub-commands. A mote sub-frame is an ordinary frame addressed
// to or from IDMote whose command byte is one of these; higher command ids
// from IDMote are normal packets.
const (
	MoteFillRxBuffer       uint8 = 0
	MoteFillRxBufferLong   uint8 = 1
	MoteProcessRxBuffer    uint8 = 2
	MoteProcessShortBuffer uint8 = 3
)
