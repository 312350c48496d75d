package playstore

import (
	"context"
	"fmt"

	"github.com/replygate/replygate/ports"
)

// Verification modes.
const (
	ModeNone   = "none"
	ModeFake   = "fake"
	ModeGoogle = "google"
)

// Options selects and configures a verifier.
type Options struct {
	// Mode is one of ModeNone, ModeFake, ModeGoogle. Empty means ModeNone.
	Mode string

	// Environment gates the fake verifier; "production" refuses it.
	Environment string

	// FakeTokenPrefix configures the fake verifier.
	FakeTokenPrefix string

	// Google configures the google verifier.
	Google GoogleConfig
}

// NewVerifier builds the verifier selected by Mode. The default is the
// fail-closed DenyVerifier, and the fake verifier cannot be built for a
// production environment.
func NewVerifier(ctx context.Context, opts Options) (ports.PurchaseVerifier, error) {
	switch opts.Mode {
	case "", ModeNone:
		return DenyVerifier{}, nil
	case ModeFake:
		if opts.Environment == "production" {
			return nil, fmt.Errorf("playstore: fake verifier not allowed in production")
		}
		return NewFakeVerifier(opts.FakeTokenPrefix), nil
	case ModeGoogle:
		return NewGoogleVerifier(ctx, opts.Google)
	default:
		return nil, fmt.Errorf("playstore: unknown verification mode %q", opts.Mode)
	}
}
