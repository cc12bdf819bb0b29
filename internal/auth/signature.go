package auth

import (
	"crypto/hmac"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ValidationError is a wire-level reason code for a rejected signed request.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	ErrInvalidDevice       = ValidationError("invalid_device")
	ErrMissingTimestamp    = ValidationError("missing_timestamp")
	ErrInvalidTimestamp    = ValidationError("invalid_timestamp")
	ErrTimestampOutOfRange = ValidationError("timestamp_out_of_range")
	ErrSignatureMismatch   = ValidationError("signature_mismatch")
)

// Validator checks the stateless per-request HMAC used by the queue
// endpoints. It keeps no nonce state: a captured signature stays replayable
// within the tolerance window. That is an accepted property of the
// protocol, not something to silently harden here.
type Validator struct {
	Tolerance time.Duration
	now       func() time.Time
}

func NewValidator(tolerance time.Duration) *Validator {
	return NewValidatorWithNow(tolerance, time.Now)
}

func NewValidatorWithNow(tolerance time.Duration, now func() time.Time) *Validator {
	return &Validator{Tolerance: tolerance, now: now}
}

// Validate verifies signature as HMAC-SHA256(secret, canonical) where
// canonical is the pipe-joined fields with the request timestamp as the
// final field. Checks run in the fixed order invalid_device,
// missing/invalid_timestamp, timestamp_out_of_range, signature_mismatch.
func (v *Validator) Validate(secret, signature string, rawTimestamp any, fields ...string) error {
	if secret == "" || signature == "" {
		return ErrInvalidDevice
	}

	ts, err := ParseTimestamp(rawTimestamp)
	if err != nil {
		return err
	}

	now := v.now().Unix()
	tolerance := int64(v.Tolerance / time.Second)
	if diff := now - ts; diff > tolerance || diff < -tolerance {
		return ErrTimestampOutOfRange
	}

	canonical := CanonicalString(append(fields, strconv.FormatInt(ts, 10))...)
	expected := ComputeHMACHex(secret, canonical)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// ParseTimestamp normalizes the timestamp field of a signed request, which
// may arrive as a JSON number or a decimal string.
func ParseTimestamp(raw any) (int64, error) {
	switch t := raw.(type) {
	case nil:
		return 0, ErrMissingTimestamp
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, ErrInvalidTimestamp
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, ErrInvalidTimestamp
		}
		return n, nil
	default:
		return 0, ErrInvalidTimestamp
	}
}
