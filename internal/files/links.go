package files

import (
	"fmt"
	"strings"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
)

// TTLink builds a tt:// quick-connect link that joins the root channel.
// The empty nickname falls back to the username, matching client behavior.
func TTLink(cfg config.VoiceConfig, username, password, nickname string) string {
	encrypted := "0"
	if cfg.Encrypted {
		encrypted = "1"
	}
	if strings.TrimSpace(nickname) == "" {
		nickname = username
	}

	return fmt.Sprintf(
		"tt://%s?tcpport=%d&udpport=%d&encrypted=%s&username=%s&password=%s&nickname=%s&channel=/&chanpasswd=",
		cfg.EffectivePublicHost(),
		cfg.TCPPort,
		cfg.EffectiveUDPPort(),
		encrypted,
		encodeLinkComponent(username),
		encodeLinkComponent(password),
		encodeLinkComponent(nickname),
	)
}

// encodeLinkComponent percent-encodes a query value the way the TeamTalk
// client expects: unreserved bytes pass through, space becomes a plus sign.
func encodeLinkComponent(input string) string {
	var out strings.Builder
	for i := 0; i < len(input); i++ {
		b := input[i]
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9',
			b == '-', b == '_', b == '.', b == '~':
			out.WriteByte(b)
		case b == ' ':
			out.WriteByte('+')
		default:
			fmt.Fprintf(&out, "%%%02X", b)
		}
	}
	return out.String()
}
