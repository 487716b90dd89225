package wire

import "fmt"

// CommandID identifies the device operation a packet invokes.
type CommandID uint16

// Core command IDs. The 4–13/16–29 numbering (with the 14–15 gap) mirrors
// the device firmware's own dispatch table.
const (
	CmdGetDeviceInfo          CommandID = 1
	CmdGetDeviceTime          CommandID = 2
	CmdSetDeviceTime          CommandID = 3
	CmdGetFileList            CommandID = 4
	CmdTransferFile           CommandID = 5
	CmdGetFileCount           CommandID = 6
	CmdDeleteFile             CommandID = 7
	CmdRequestFirmwareUpgrade CommandID = 8
	CmdFirmwareUpload         CommandID = 9
	CmdDeviceMsgTest          CommandID = 10
	CmdGetSettings            CommandID = 11
	CmdSetSettings            CommandID = 12
	CmdGetFileBlock           CommandID = 13
	CmdGetCardInfo            CommandID = 16
	CmdFormatCard             CommandID = 17
	CmdGetRecordingFile       CommandID = 18
	CmdSendKeyCode            CommandID = 19
	CmdRecordTestStart        CommandID = 20
	CmdRecordTestEnd          CommandID = 21
	CmdGetBatteryStatus       CommandID = 22
	CmdEnterMassStorage       CommandID = 23
	CmdGetUSBIdleTimeout      CommandID = 24
	CmdSetUSBIdleTimeout      CommandID = 25
	CmdRequestToneUpdate      CommandID = 26
	CmdToneUpload             CommandID = 27
	CmdRequestCodecUpdate     CommandID = 28
	CmdCodecUpload            CommandID = 29
)

// Bluetooth command IDs (0x1001 block, H1E dongle firmware only).
const (
	CmdBluetoothScanStart     CommandID = 0x1001
	CmdBluetoothScanStop      CommandID = 0x1002
	CmdBluetoothScanResults   CommandID = 0x1003
	CmdBluetoothGetPairedList CommandID = 0x1004
	CmdBluetoothConnect       CommandID = 0x1005
	CmdBluetoothDisconnect    CommandID = 0x1006
	CmdBluetoothReconnect     CommandID = 0x1007
	CmdBluetoothClearPaired   CommandID = 0x1008
	CmdBluetoothGetStatus     CommandID = 0x1009
)

// commandNames maps command IDs to human-readable names for logs and traces.
var commandNames = map[CommandID]string{
	CmdGetDeviceInfo:          "GET_DEVICE_INFO",
	CmdGetDeviceTime:          "GET_DEVICE_TIME",
	CmdSetDeviceTime:          "SET_DEVICE_TIME",
	CmdGetFileList:            "GET_FILE_LIST",
	CmdTransferFile:           "TRANSFER_FILE",
	CmdGetFileCount:           "GET_FILE_COUNT",
	CmdDeleteFile:             "DELETE_FILE",
	CmdRequestFirmwareUpgrade: "REQUEST_FIRMWARE_UPGRADE",
	CmdFirmwareUpload:         "FIRMWARE_UPLOAD",
	CmdDeviceMsgTest:          "DEVICE_MSG_TEST",
	CmdGetSettings:            "GET_SETTINGS",
	CmdSetSettings:            "SET_SETTINGS",
	CmdGetFileBlock:           "GET_FILE_BLOCK",
	CmdGetCardInfo:            "GET_CARD_INFO",
	CmdFormatCard:             "FORMAT_CARD",
	CmdGetRecordingFile:       "GET_RECORDING_FILE",
	CmdSendKeyCode:            "SEND_KEY_CODE",
	CmdRecordTestStart:        "RECORD_TEST_START",
	CmdRecordTestEnd:          "RECORD_TEST_END",
	CmdGetBatteryStatus:       "GET_BATTERY_STATUS",
	CmdEnterMassStorage:       "ENTER_MASS_STORAGE",
	CmdGetUSBIdleTimeout:      "GET_USB_IDLE_TIMEOUT",
	CmdSetUSBIdleTimeout:      "SET_USB_IDLE_TIMEOUT",
	CmdRequestToneUpdate:      "REQUEST_TONE_UPDATE",
	CmdToneUpload:             "TONE_UPLOAD",
	CmdRequestCodecUpdate:     "REQUEST_CODEC_UPDATE",
	CmdCodecUpload:            "CODEC_UPLOAD",
	CmdBluetoothScanStart:     "BT_SCAN_START",
	CmdBluetoothScanStop:      "BT_SCAN_STOP",
	CmdBluetoothScanResults:   "BT_SCAN_RESULTS",
	CmdBluetoothGetPairedList: "BT_GET_PAIRED_LIST",
	CmdBluetoothConnect:       "BT_CONNECT",
	CmdBluetoothDisconnect:    "BT_DISCONNECT",
	CmdBluetoothReconnect:     "BT_RECONNECT",
	CmdBluetoothClearPaired:   "BT_CLEAR_PAIRED",
	CmdBluetoothGetStatus:     "BT_GET_STATUS",
}

// String returns the command name, or a hex literal for unknown IDs.
func (c CommandID) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD_0x%04X", uint16(c))
}

// Known reports whether the command ID is part of the documented ID space.
func (c CommandID) Known() bool {
	_, ok := commandNames[c]
	return ok
}
