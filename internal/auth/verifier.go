// Package auth verifies Cognito access tokens against the user pool's JWKS.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated covers every verification failure a caller should
	// map to a 401. More specific causes wrap it.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrKeyNotFound indicates the token's kid has no match in the JWKS.
	ErrKeyNotFound = fmt.Errorf("auth: signing key not found: %w", ErrUnauthenticated)
)

// Claims is the verified identity extracted from an access token.
type Claims struct {
	Sub      string
	Username string
	ClientID string
	TokenUse string
}

// Verifier validates Cognito-issued JWTs. It is safe for concurrent use.
type Verifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	clientID string
}

// NewVerifier fetches the user pool's JWKS and returns a Verifier. The key
// set refreshes hourly and on unknown kids, so key rotation does not require
// a restart.
func NewVerifier(ctx context.Context, region, userPoolID, clientID string) (*Verifier, error) {
	region = strings.TrimSpace(region)
	userPoolID = strings.TrimSpace(userPoolID)
	clientID = strings.TrimSpace(clientID)
	if region == "" || userPoolID == "" {
		return nil, errors.New("auth: region and user pool id are required")
	}
	if clientID == "" {
		return nil, errors.New("auth: client id is required")
	}

	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	jwks, err := keyfunc.Get(issuer+"/.well-known/jwks.json", keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			slog.Error("jwks refresh failed", "err", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	return &Verifier{jwks: jwks, issuer: issuer, clientID: clientID}, nil
}

// NewVerifierFromJWKS builds a Verifier from raw JWKS JSON. Used by tests
// and offline tooling; no refresh is performed.
func NewVerifierFromJWKS(raw json.RawMessage, issuer, clientID string) (*Verifier, error) {
	if strings.TrimSpace(issuer) == "" || strings.TrimSpace(clientID) == "" {
		return nil, errors.New("auth: issuer and client id are required")
	}
	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: parse jwks: %w", err)
	}
	return &Verifier{jwks: jwks, issuer: issuer, clientID: clientID}, nil
}

// Verify checks signature, issuer, token use and client id, returning the
// verified claims. Any failure is reported as ErrUnauthenticated; an unknown
// signing key additionally matches ErrKeyNotFound.
func (v *Verifier) Verify(tokenString string) (Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Claims{}, fmt.Errorf("auth: empty token: %w", ErrUnauthenticated)
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	)
	if err != nil {
		if errors.Is(err, keyfunc.ErrKIDNotFound) || errors.Is(err, keyfunc.ErrKID) {
			return Claims{}, ErrKeyNotFound
		}
		return Claims{}, fmt.Errorf("auth: parse token: %v: %w", err, ErrUnauthenticated)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("auth: invalid token: %w", ErrUnauthenticated)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("auth: unexpected claims type: %w", ErrUnauthenticated)
	}

	claims := Claims{
		Sub:      stringClaim(mapClaims, "sub"),
		Username: stringClaim(mapClaims, "username"),
		ClientID: stringClaim(mapClaims, "client_id"),
		TokenUse: stringClaim(mapClaims, "token_use"),
	}

	// Access tokens only. An ID token is rejected here even when its
	// signature checks out.
	if claims.TokenUse != "access" {
		return Claims{}, fmt.Errorf("auth: token_use %q is not access: %w", claims.TokenUse, ErrUnauthenticated)
	}
	if claims.ClientID != v.clientID {
		return Claims{}, fmt.Errorf("auth: client id mismatch: %w", ErrUnauthenticated)
	}
	if claims.Sub == "" {
		return Claims{}, fmt.Errorf("auth: missing sub: %w", ErrUnauthenticated)
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value, or
// returns the empty string when the header is not a bearer credential.
func BearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
