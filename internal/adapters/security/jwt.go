package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/ports"
)

// JWTSigner implements RS256 signing/parsing for portal session tokens.
// Keys live at adapter level so the flow stays crypto-library agnostic. The
// backend's own bearer token is never parsed here; it stays opaque inside
// the stored session.
type JWTSigner struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewJWTSigner builds a signer from configured PEM keys.
func NewJWTSigner(kid, privateKeyPEM, publicKeyPEM string) (*JWTSigner, error) {
	if kid == "" {
		return nil, errors.New("jwt key id (kid) is required")
	}
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("jwt private/public keys are required")
	}
	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &JWTSigner{kid: kid, privateKey: priv, publicKey: pub}, nil
}

// NewEphemeralJWTSigner creates an in-memory keypair for local/dev use.
// It exists to unblock runtime startup when static keys are intentionally
// absent; tokens do not survive a restart.
func NewEphemeralJWTSigner(kid string) (*JWTSigner, error) {
	if kid == "" {
		kid = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &JWTSigner{kid: kid, privateKey: privateKey, publicKey: &privateKey.PublicKey}, nil
}

type portalJWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Mobile string `json:"mobile"`
	Portal string `json:"portal"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) Sign(claims ports.PortalClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, portalJWTClaims{
		UserID: claims.UserID,
		Role:   string(claims.Role),
		Mobile: claims.Mobile,
		Portal: claims.Portal,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "portal-gateway",
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

func (s *JWTSigner) ParseAndValidate(raw string) (ports.PortalClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &portalJWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.PortalClaims{}, domain.ErrTokenExpired
		}
		return ports.PortalClaims{}, domain.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*portalJWTClaims)
	if !ok || !parsed.Valid {
		return ports.PortalClaims{}, domain.ErrUnauthorized
	}
	out := ports.PortalClaims{
		UserID: claims.UserID,
		Role:   domain.Role(claims.Role),
		Mobile: claims.Mobile,
		Portal: claims.Portal,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func parseRSAPrivate(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("PEM does not contain an RSA private key")
	}
	return key, nil
}

func parseRSAPublic(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PEM does not contain an RSA public key")
	}
	return key, nil
}
