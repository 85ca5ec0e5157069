package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/IBM/go-sdk-core/v5/core"
	"go.uber.org/zap"
)

// Authenticator handles token-based authentication against the upstream log
// store's IAM endpoint
type Authenticator struct {
	authenticator core.Authenticator
	logger        *zap.Logger
}

// New creates a new IAM authenticator for the given API key
func New(apiKey string, iamURL string, logger *zap.Logger) (*Authenticator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	authenticator := &core.IamAuthenticator{
		ApiKey: apiKey,
	}

	// Custom token endpoint for staging/dev environments
	if iamURL != "" {
		authenticator.URL = iamURL
		logger.Info("Using custom IAM endpoint", zap.String("iam_url", iamURL))
	}

	if err := authenticator.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate authenticator: %w", err)
	}

	logger.Info("IAM authenticator initialized successfully")

	return &Authenticator{
		authenticator: authenticator,
		logger:        logger,
	}, nil
}

// Authenticate adds authentication to an HTTP request. Bearer token
// generation and refresh are handled by the underlying authenticator.
func (a *Authenticator) Authenticate(req *http.Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	err := a.authenticator.Authenticate(req)
	if err != nil {
		a.logger.Error("Authentication failed", zap.Error(err))
		return fmt.Errorf("authentication failed: %w", err)
	}

	return nil
}

// GetToken retrieves the current bearer token (for debugging/monitoring)
func (a *Authenticator) GetToken() (string, error) {
	if iamAuth, ok := a.authenticator.(*core.IamAuthenticator); ok {
		token, err := iamAuth.RequestToken()
		if err != nil {
			return "", fmt.Errorf("failed to get token: %w", err)
		}
		return token.AccessToken, nil
	}
	return "", fmt.Errorf("unsupported authenticator type")
}

// ValidateToken validates that we can obtain a valid token
func (a *Authenticator) ValidateToken() error {
	_, err := a.GetToken()
	return err
}

// JWTClaims holds the claims of an IAM-issued access token. Used for audit
// attribution; signature verification is the token issuer's job, not ours.
type JWTClaims struct {
	Subject    string `json:"sub"`
	IAMId      string `json:"iam_id"`
	AccountID  string `json:"account"`
	RealmID    string `json:"realmid"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}

// Identity returns the claims of the current access token.
func (a *Authenticator) Identity() (*JWTClaims, error) {
	token, err := a.GetToken()
	if err != nil {
		return nil, err
	}
	return parseJWTClaims(token)
}

// parseJWTClaims decodes the payload section of a JWT without verifying the
// signature.
func parseJWTClaims(token string) (*JWTClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid token format: expected 3 parts, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode token payload: %w", err)
	}

	var claims JWTClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return &claims, nil
}
