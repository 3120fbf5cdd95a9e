package http

import (
	"testing"

	"github.com/vovakirdan/supportchat-server/internal/proto"
)

func TestProtocolVersionMismatch(t *testing.T) {
	env := startTestServer(t, nil)
	conn := env.dial(t)

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{UserID: "c1", Protocol: proto.ProtocolVersion + 1})
	readError(t, conn, errCodeUnsupportedVersion)

	send(t, conn, proto.InboundTypeAuthenticate, proto.AuthenticateData{UserID: "c1", Protocol: proto.ProtocolVersion})
	readEvent(t, conn, proto.EventAuthenticated, nil)
}
