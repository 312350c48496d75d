// Package playstore provides purchase verifiers for paid activation.
// The google verifier asks the Play Developer API whether a purchase
// token is genuine; fake and deny exist for development and for
// deployments without billing credentials.
package playstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/replygate/replygate/ports"
)

const (
	defaultAPIBaseURL     = "https://androidpublisher.googleapis.com"
	androidPublisherScope = "https://www.googleapis.com/auth/androidpublisher"
)

// Subscription states the Play Developer API reports that we treat as a
// valid, payable subscription.
const (
	stateActive      = "SUBSCRIPTION_STATE_ACTIVE"
	stateGracePeriod = "SUBSCRIPTION_STATE_IN_GRACE_PERIOD"
)

// GoogleConfig holds Play Developer API credentials.
type GoogleConfig struct {
	// PackageName is the application ID the tokens belong to.
	PackageName string

	// ServiceAccountJSON is the raw service account key file content.
	ServiceAccountJSON []byte

	// BaseURL overrides the API endpoint. Empty means production.
	BaseURL string
}

// GoogleVerifier verifies purchase tokens against the Play Developer
// API (purchases.subscriptionsv2.get).
type GoogleVerifier struct {
	packageName string
	baseURL     string
	httpClient  *http.Client
}

var _ ports.PurchaseVerifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier builds a verifier from a service account key. The
// key must carry the androidpublisher scope grant.
func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*GoogleVerifier, error) {
	if cfg.PackageName == "" {
		return nil, fmt.Errorf("playstore: package name is required")
	}

	jwtCfg, err := google.JWTConfigFromJSON(cfg.ServiceAccountJSON, androidPublisherScope)
	if err != nil {
		return nil, fmt.Errorf("playstore: parse service account key: %w", err)
	}

	client := jwtCfg.Client(ctx)
	client.Timeout = 10 * time.Second

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}

	return &GoogleVerifier{
		packageName: cfg.PackageName,
		baseURL:     baseURL,
		httpClient:  client,
	}, nil
}

// newGoogleVerifierWithClient skips credential setup. Used by tests.
func newGoogleVerifierWithClient(packageName, baseURL string, client *http.Client) *GoogleVerifier {
	return &GoogleVerifier{packageName: packageName, baseURL: baseURL, httpClient: client}
}

// Name returns the verifier name.
func (v *GoogleVerifier) Name() string { return "google" }

// Verify asks the Play Developer API for the subscription behind the
// token. Tokens the API does not know, or whose subscription is not in
// a payable state, are refused.
func (v *GoogleVerifier) Verify(ctx context.Context, deviceID, purchaseToken string) error {
	if purchaseToken == "" {
		return ports.ErrVerificationRefused
	}

	endpoint := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/subscriptionsv2/tokens/%s",
		v.baseURL, url.PathEscape(v.packageName), url.PathEscape(purchaseToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("playstore: create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("playstore: verify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("playstore: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to state check below.
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// The API does not know this token.
		return ports.ErrVerificationRefused
	default:
		// Transient API trouble is not a refusal; the caller may retry.
		return fmt.Errorf("playstore: api status %d", resp.StatusCode)
	}

	var sub struct {
		SubscriptionState string `json:"subscriptionState"`
	}
	if err := json.Unmarshal(body, &sub); err != nil {
		return fmt.Errorf("playstore: decode response: %w", err)
	}

	if sub.SubscriptionState != stateActive && sub.SubscriptionState != stateGracePeriod {
		return ports.ErrVerificationRefused
	}
	return nil
}
