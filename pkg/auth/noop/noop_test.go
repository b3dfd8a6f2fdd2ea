package noop

import (
	"context"
	"net/http"
	"testing"

	"github.com/nxgate/nxgate/pkg/auth"
)

func TestAcceptsEverything(t *testing.T) {
	r, _ := http.NewRequest("GET", "/v1/models", nil)
	result := (&Authenticator{}).Authenticate(context.Background(), r)
	if result.Decision != auth.Yes || result.Identity.Subject != "anonymous" {
		t.Errorf("result = %+v", result)
	}
}
