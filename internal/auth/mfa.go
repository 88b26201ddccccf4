package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
)

// MFASetup is the material returned when enrollment starts. The secret is
// staged server-side and only committed after the user proves possession.
type MFASetup struct {
	Secret         string
	OTPAuthURL     string
	QRCode         string
	ManualEntryKey string
}

// TOTPManager generates and validates time-based one-time passwords.
type TOTPManager struct {
	issuer string
	skew   uint
	now    func() time.Time
}

// NewTOTPManager constructs a TOTPManager. skew is the number of 30-second
// steps tolerated on either side of now.
func NewTOTPManager(issuer string, skew uint) *TOTPManager {
	if issuer == "" {
		issuer = "TrialDesk"
	}
	return &TOTPManager{issuer: issuer, skew: skew, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (m *TOTPManager) WithClock(now func() time.Time) *TOTPManager {
	m.now = now
	return m
}

// GenerateSetup creates a fresh secret plus the scannable material for the
// given account label.
func (m *TOTPManager) GenerateSetup(account string) (*MFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  20,
	})
	if err != nil {
		return nil, err
	}
	qr, err := encodeQRCode(key)
	if err != nil {
		return nil, err
	}
	return &MFASetup{
		Secret:         key.Secret(),
		OTPAuthURL:     key.URL(),
		QRCode:         qr,
		ManualEntryKey: formatManualEntryKey(key.Secret()),
	}, nil
}

// Validate checks a 6-digit code against the base32 secret within the
// configured skew window.
func (m *TOTPManager) Validate(secret, code string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, m.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      m.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func encodeQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// formatManualEntryKey groups the base32 secret in blocks of four so users
// can type it into an authenticator by hand.
func formatManualEntryKey(secret string) string {
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SetupStore stages generated secrets until the user verifies possession.
// A staged secret that is never verified expires on its own.
type SetupStore interface {
	Stage(ctx context.Context, userID, secret string) error
	Peek(ctx context.Context, userID string) (string, error)
	Discard(ctx context.Context, userID string) error
}

// RedisSetupStore stages enrollment secrets in Redis with a short TTL.
type RedisSetupStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSetupStore constructs a RedisSetupStore.
func NewSetupStore(client *redis.Client, ttl time.Duration) *RedisSetupStore {
	return &RedisSetupStore{client: client, ttl: ttl}
}

func setupKey(userID string) string {
	return "mfa:setup:" + userID
}

// Stage stores the secret, replacing any previous staged secret.
func (s *RedisSetupStore) Stage(ctx context.Context, userID, secret string) error {
	return s.client.Set(ctx, setupKey(userID), secret, s.ttl).Err()
}

// Peek returns the staged secret, or "" when expired or never staged.
func (s *RedisSetupStore) Peek(ctx context.Context, userID string) (string, error) {
	secret, err := s.client.Get(ctx, setupKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return secret, nil
}

// Discard removes the staged secret.
func (s *RedisSetupStore) Discard(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, setupKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

var _ SetupStore = (*RedisSetupStore)(nil)
