package playstore

import (
	"context"
	"strings"

	"github.com/replygate/replygate/ports"
)

// FakeVerifier accepts any token carrying a configured prefix. It is a
// development aid only; NewVerifier refuses to build it in production.
type FakeVerifier struct {
	prefix string
}

var _ ports.PurchaseVerifier = (*FakeVerifier)(nil)

// NewFakeVerifier builds a verifier accepting tokens with the given
// prefix. An empty prefix defaults to "fake-".
func NewFakeVerifier(prefix string) *FakeVerifier {
	if prefix == "" {
		prefix = "fake-"
	}
	return &FakeVerifier{prefix: prefix}
}

// Name returns the verifier name.
func (v *FakeVerifier) Name() string { return "fake" }

// Verify accepts tokens with the configured prefix, refuses the rest.
func (v *FakeVerifier) Verify(ctx context.Context, deviceID, purchaseToken string) error {
	if strings.HasPrefix(purchaseToken, v.prefix) && len(purchaseToken) > len(v.prefix) {
		return nil
	}
	return ports.ErrVerificationRefused
}

// DenyVerifier refuses every token. It is the fail-closed default when
// no verification mode is configured.
type DenyVerifier struct{}

var _ ports.PurchaseVerifier = (*DenyVerifier)(nil)

// Name returns the verifier name.
func (DenyVerifier) Name() string { return "deny" }

// Verify always refuses.
func (DenyVerifier) Verify(ctx context.Context, deviceID, purchaseToken string) error {
	return ports.ErrVerificationRefused
}
