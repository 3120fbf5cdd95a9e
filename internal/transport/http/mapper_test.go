package http

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/proto"
)

func TestErrorFrameCarriesMessage(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventError,
		Error: core.NewError(core.ErrCodeAccessDenied, "access denied"),
	})
	if out.Type != proto.OutboundTypeError {
		t.Fatalf("expected error frame, got %q", out.Type)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, `"message":"access denied"`) {
		t.Fatalf("error payload missing message: %s", body)
	}
	if strings.Contains(body, `"msg"`) {
		t.Fatalf("error payload uses msg key: %s", body)
	}
	if !strings.Contains(body, `"code":"access_denied"`) {
		t.Fatalf("error payload missing code: %s", body)
	}
}
