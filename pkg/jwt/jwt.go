package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const algHS256 = "HS256"

var enc = base64.RawURLEncoding

// StandardClaims are the registered claims of RFC 7519.
type StandardClaims struct {
	ID        string   `json:"jti,omitempty"`
	Subject   string   `json:"sub,omitempty"`
	Issuer    string   `json:"iss,omitempty"`
	Audience  []string `json:"aud,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
}

// Valid checks exp and nbf against now.
func (c StandardClaims) Valid(now time.Time) error {
	ts := now.Unix()
	if c.ExpiresAt != 0 && ts >= c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore != 0 && ts < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Service signs and verifies tokens with one key.
type Service struct {
	key []byte
	now func() time.Time
}

func New(key []byte) (*Service, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &Service{key: key, now: time.Now}, nil
}

func NewFromString(key string) (*Service, error) {
	return New([]byte(key))
}

// Generate encodes claims as the token payload.
func (s *Service) Generate(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	h, err := json.Marshal(header{Alg: algHS256, Typ: "JWT"})
	if err != nil {
		return "", err
	}
	p, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Join(ErrMissingClaims, err)
	}
	unsigned := enc.EncodeToString(h) + "." + enc.EncodeToString(p)
	return unsigned + "." + enc.EncodeToString(s.sign(unsigned)), nil
}

// Parse verifies token and decodes its payload into claims.
func (s *Service) Parse(token string, claims any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	rawHeader, err := enc.DecodeString(parts[0])
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	var h header
	if err := json.Unmarshal(rawHeader, &h); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if h.Alg != algHS256 {
		return ErrUnexpectedSigningMethod
	}

	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if !hmac.Equal(sig, s.sign(parts[0]+"."+parts[1])) {
		return ErrInvalidSignature
	}

	payload, err := enc.DecodeString(parts[1])
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	var std StandardClaims
	if err := json.Unmarshal(payload, &std); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if err := std.Valid(s.now()); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, claims); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	return nil
}

func (s *Service) sign(unsigned string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(unsigned))
	return mac.Sum(nil)
}
