package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates short-lived preview tokens bound to
// a resource and the user the link was issued to.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the resource and the holder.
func (s *SignedURLSigner) Generate(resourceID, userID string) (string, time.Time, error) {
	if resourceID == "" || userID == "" {
		return "", time.Time{}, fmt.Errorf("resourceID and userID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	encodedUser := base64.RawURLEncoding.EncodeToString([]byte(userID))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(resourceID, ts, encodedUser)
	token := strings.Join([]string{resourceID, ts, encodedUser, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded resource and user.
func (s *SignedURLSigner) Parse(token string) (resourceID, userID string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	resourceID = parts[0]
	ts := parts[1]
	encodedUser := parts[2]
	signature := parts[3]

	rawUser, err := base64.RawURLEncoding.DecodeString(encodedUser)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode user: %w", err)
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)

	expected := s.sign(resourceID, ts, encodedUser)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return resourceID, string(rawUser), expiresAt, nil
}

func (s *SignedURLSigner) sign(resourceID, ts, encodedUser string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(resourceID + "|" + ts + "|" + encodedUser))
	return hex.EncodeToString(mac.Sum(nil))
}
