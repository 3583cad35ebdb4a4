package files

import "strings"

// TeamTalk 5 user right flags.
const (
	RightMultiLogin             uint32 = 0x00000001
	RightViewAllUsers           uint32 = 0x00000002
	RightCreateTemporaryChannel uint32 = 0x00000004
	RightModifyChannels         uint32 = 0x00000008
	RightTextMessageBroadcast   uint32 = 0x00000010
	RightKickUsers              uint32 = 0x00000020
	RightBanUsers               uint32 = 0x00000040
	RightMoveUsers              uint32 = 0x00000080
	RightOperatorEnable         uint32 = 0x00000100
	RightUploadFiles            uint32 = 0x00000200
	RightDownloadFiles          uint32 = 0x00000400
	RightUpdateServerProperties uint32 = 0x00000800
	RightTransmitVoice          uint32 = 0x00001000
	RightTransmitVideoCapture   uint32 = 0x00002000
	RightTransmitDesktop        uint32 = 0x00004000
	RightTransmitDesktopInput   uint32 = 0x00008000
	RightTransmitMediaFile      uint32 = 0x00030000
	RightLockedNickname         uint32 = 0x00040000
	RightLockedStatus           uint32 = 0x00080000
	RightRecordVoice            uint32 = 0x00100000
	RightViewHiddenChannels     uint32 = 0x00200000
	RightTextMessageUser        uint32 = 0x00400000
	RightTextMessageChannel     uint32 = 0x00800000
)

var rightsByName = map[string]uint32{
	"MULTI_LOGIN":              RightMultiLogin,
	"VIEW_ALL_USERS":           RightViewAllUsers,
	"CREATE_TEMPORARY_CHANNEL": RightCreateTemporaryChannel,
	"MODIFY_CHANNELS":          RightModifyChannels,
	"TEXTMESSAGE_BROADCAST":    RightTextMessageBroadcast,
	"KICK_USERS":               RightKickUsers,
	"BAN_USERS":                RightBanUsers,
	"MOVE_USERS":               RightMoveUsers,
	"OPERATOR_ENABLE":          RightOperatorEnable,
	"UPLOAD_FILES":             RightUploadFiles,
	"DOWNLOAD_FILES":           RightDownloadFiles,
	"UPDATE_SERVERPROPERTIES":  RightUpdateServerProperties,
	"TRANSMIT_VOICE":           RightTransmitVoice,
	"TRANSMIT_VIDEOCAPTURE":    RightTransmitVideoCapture,
	"TRANSMIT_DESKTOP":         RightTransmitDesktop,
	"TRANSMIT_DESKTOPINPUT":    RightTransmitDesktopInput,
	"TRANSMIT_MEDIAFILE":       RightTransmitMediaFile,
	"LOCKED_NICKNAME":          RightLockedNickname,
	"LOCKED_STATUS":            RightLockedStatus,
	"RECORD_VOICE":             RightRecordVoice,
	"VIEW_HIDDEN_CHANNELS":     RightViewHiddenChannels,
	"TEXTMESSAGE_USER":         RightTextMessageUser,
	"TEXTMESSAGE_CHANNEL":      RightTextMessageChannel,
}

// UserRightsMask builds a TeamTalk rights bitmask from named rights.
// Unknown names contribute nothing.
func UserRightsMask(names []string) uint32 {
	var mask uint32
	for _, name := range names {
		mask |= rightsByName[strings.ToUpper(strings.TrimSpace(name))]
	}
	return mask
}
