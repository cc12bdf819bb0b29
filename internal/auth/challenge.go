package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"fleet-command-server/internal/model"
)

const nonceLen = 16

// DeviceSource resolves a device api key to its record. Implemented by the
// store; the authenticator only ever reads devices.
type DeviceSource interface {
	DeviceByKey(key string) (model.Device, bool)
	DeviceByID(id int64) (model.Device, bool)
}

// Challenge is the ephemeral record behind an issued nonce. The secret key
// is snapshotted at issue time so a rotation mid-handshake does not break
// an in-flight response.
type Challenge struct {
	DeviceID int64
	Key      string
	IssuedAt int64
}

// Session binds an opaque token to a device. Session tokens authorize only
// identity operations (tag check/register/revoke, status, syslog), never
// queue polling.
type Session struct {
	DeviceID int64
}

// ChallengeResult is shaped identically for real and decoy challenges so
// unknown keys cannot be told apart from known ones.
type ChallengeResult struct {
	Garbage  bool
	Nonce    string
	IssuedAt int64
	MinDelay int
}

type SessionGrant struct {
	Token     string
	ExpiresIn int
}

// Authenticator issues one-shot nonces and mints sessions on a valid
// proof. Challenge and session records live in an injected TTL store.
type Authenticator struct {
	devices DeviceSource
	store   *TTLStore

	ChallengeTTL time.Duration
	SessionTTL   time.Duration
	MinDelay     int

	now func() time.Time
}

func NewAuthenticator(devices DeviceSource, store *TTLStore, challengeTTL, sessionTTL time.Duration, minDelay int) *Authenticator {
	return &Authenticator{
		devices:      devices,
		store:        store,
		ChallengeTTL: challengeTTL,
		SessionTTL:   sessionTTL,
		MinDelay:     minDelay,
		now:          time.Now,
	}
}

func challengeKey(deviceID int64, nonce string) string {
	return fmt.Sprintf("challenge:%d:%s", deviceID, nonce)
}

func sessionKey(token string) string {
	return "session:" + token
}

// IssueChallenge generates a nonce for the device holding key. Unknown or
// inactive devices get a decoy of the same shape; the caller cannot
// distinguish the two cases.
func (a *Authenticator) IssueChallenge(key string) ChallengeResult {
	device, ok := a.devices.DeviceByKey(key)
	if !ok || !device.Active {
		return ChallengeResult{Garbage: true, Nonce: GarbageHex()}
	}

	raw := make([]byte, nonceLen)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	nonce := base64.StdEncoding.EncodeToString(raw)
	issuedAt := a.now().Unix()

	a.store.Set(challengeKey(device.ID, nonce), Challenge{
		DeviceID: device.ID,
		Key:      device.APIKey,
		IssuedAt: issuedAt,
	}, a.ChallengeTTL)

	return ChallengeResult{Nonce: nonce, IssuedAt: issuedAt, MinDelay: a.MinDelay}
}

// VerifyChallenge checks proof against HMAC-SHA256(secret, nonce|issuedAt).
// The challenge is consumed on lookup, so a failed proof burns it too. On
// failure the reason is returned together with a decoy value; on success a
// session is stored and its token returned.
func (a *Authenticator) VerifyChallenge(key string, deviceID int64, nonce, proof string) (SessionGrant, string) {
	id := deviceID
	if id == 0 {
		device, ok := a.devices.DeviceByKey(key)
		if !ok || !device.Active {
			return SessionGrant{}, "no_challenge"
		}
		id = device.ID
	}

	value, ok := a.store.Consume(challengeKey(id, nonce))
	if !ok {
		return SessionGrant{}, "no_challenge"
	}
	challenge, ok := value.(Challenge)
	if !ok {
		return SessionGrant{}, "no_challenge"
	}

	canonical := nonce + "|" + strconv.FormatInt(challenge.IssuedAt, 10)
	expected := ComputeHMACHex(challenge.Key, canonical)
	if !hmac.Equal([]byte(expected), []byte(proof)) {
		return SessionGrant{}, "bad_response"
	}

	token := RandomHex(64)
	a.store.Set(sessionKey(token), Session{DeviceID: challenge.DeviceID}, a.SessionTTL)
	return SessionGrant{Token: token, ExpiresIn: int(a.SessionTTL / time.Second)}, ""
}

// SessionDevice resolves a session token to its device id.
func (a *Authenticator) SessionDevice(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	value, ok := a.store.Get(sessionKey(token))
	if !ok {
		return 0, false
	}
	session, ok := value.(Session)
	if !ok {
		return 0, false
	}
	return session.DeviceID, true
}
