package cas

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // legacy registry checksums are SHA-1 by protocol
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
)

// Integrity strings carry their own algorithm: either the legacy hex form
// "sha1:<hex>" or the SRI form "sha512-<base64>". The registry decides which;
// the cache verifies whatever it is handed. No single algorithm is
// load-bearing here.
func verifyIntegrity(expected string, data []byte) error {
	algo, want, err := parseIntegrity(expected)
	if err != nil {
		return err
	}

	got, err := digest(algo, data)
	if err != nil {
		return err
	}

	if !bytes.Equal(want, got) {
		err := zerr.With(zerr.Wrap(domain.ErrIntegrityMismatch, "digest does not match"), "algorithm", algo)
		err = zerr.With(err, "expected", hex.EncodeToString(want))
		return zerr.With(err, "actual", hex.EncodeToString(got))
	}
	return nil
}

func parseIntegrity(s string) (algo string, sum []byte, err error) {
	if algo, rest, ok := strings.Cut(s, ":"); ok {
		sum, err := hex.DecodeString(rest)
		if err != nil {
			return "", nil, zerr.With(zerr.Wrap(domain.ErrIntegrityMismatch, "bad hex digest"), "integrity", s)
		}
		return algo, sum, nil
	}
	if algo, rest, ok := strings.Cut(s, "-"); ok {
		sum, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return "", nil, zerr.With(zerr.Wrap(domain.ErrIntegrityMismatch, "bad base64 digest"), "integrity", s)
		}
		return algo, sum, nil
	}
	return "", nil, zerr.With(zerr.Wrap(domain.ErrUnsupportedAlgorithm, "no algorithm prefix"), "integrity", s)
}

func digest(algo string, data []byte) ([]byte, error) {
	switch algo {
	case "sha1":
		d := sha1.Sum(data) //nolint:gosec // see package comment
		return d[:], nil
	case "sha256":
		d := sha256.Sum256(data)
		return d[:], nil
	case "sha512":
		d := sha512.Sum512(data)
		return d[:], nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnsupportedAlgorithm, "cannot digest"), "algorithm", algo)
	}
}

// DigestFor computes an integrity string for raw bytes using the given
// algorithm, in the hex form. Used when registry metadata carried no digest.
func DigestFor(algo string, data []byte) (string, error) {
	sum, err := digest(algo, data)
	if err != nil {
		return "", err
	}
	return algo + ":" + hex.EncodeToString(sum), nil
}
