// Package files generates the client-side connection artifacts handed to a
// freshly registered user: the .tt client config, the tt:// quick-connect
// link and a preconfigured client zip bundle.
package files

import (
	"fmt"
	"strings"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
)

// ttFileTemplate is the TeamTalk 5 client configuration format. The client
// is picky about the document shape, so it is produced verbatim rather than
// through encoding/xml.
const ttFileTemplate = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE teamtalk>
<teamtalk version="5.0">
    <host>
        <name>%s</name>
        <address>%s</address>
        <tcpport>%d</tcpport>
        <udpport>%d</udpport>
        <encrypted>%s</encrypted>
        <trusted-certificate>
            <certificate-authority-pem></certificate-authority-pem>
            <client-certificate-pem></client-certificate-pem>
            <client-private-key-pem></client-private-key-pem>
            <verify-peer>false</verify-peer>
        </trusted-certificate>
        <auth>
            <username>%s</username>
            <password>%s</password>
            <nickname>%s</nickname>
        </auth>
        <join>
            <channel>%s</channel>
            <password>%s</password>
        </join>
    </host>
</teamtalk>`

// TTFileContent renders the .tt client configuration for one account.
func TTFileContent(cfg config.VoiceConfig, username, password, nickname string) string {
	encrypted := "false"
	if cfg.Encrypted {
		encrypted = "true"
	}

	return fmt.Sprintf(ttFileTemplate,
		escapeXML(cfg.ServerName),
		escapeXML(cfg.EffectivePublicHost()),
		cfg.TCPPort,
		cfg.EffectiveUDPPort(),
		encrypted,
		escapeXML(username),
		escapeXML(password),
		escapeXML(nickname),
		escapeXML(cfg.JoinChannel),
		escapeXML(cfg.JoinChannelPassword),
	)
}

// TTFileName is the download name of the generated .tt file.
func TTFileName(cfg config.VoiceConfig) string {
	return cfg.ServerName + ".tt"
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
