package provision

import (
	"crypto/rand"
	"math/big"

	dErrors "carebridge/pkg/domain-errors"
)

// Provider secret policy: 8 to 16 characters with at least one uppercase
// letter, one lowercase letter and one digit.
const (
	secretMinLen = 8
	secretMaxLen = 16

	generatedSecretLen = 12
)

const (
	upperChars = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars = "abcdefghijkmnpqrstuvwxyz"
	digitChars = "23456789"
)

// GenerateSecret produces an initial secret satisfying the provider policy.
// The alphabet omits easily confused characters (0/O, 1/l/I) because the
// secret is handed to the account holder out of band.
func GenerateSecret() (string, error) {
	all := upperChars + lowerChars + digitChars

	buf := make([]byte, generatedSecretLen)
	// One character from each required class, the rest from the full
	// alphabet, then shuffled so class positions are not predictable.
	classes := []string{upperChars, lowerChars, digitChars}
	for i := range buf {
		alphabet := all
		if i < len(classes) {
			alphabet = classes[i]
		}
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	if err := shuffle(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ValidateSecret checks a caller-supplied secret against the provider policy.
func ValidateSecret(secret string) error {
	if len(secret) < secretMinLen || len(secret) > secretMaxLen {
		return dErrors.New(dErrors.CodeValidation, "secret must be between 8 and 16 characters")
	}
	var upper, lower, digit bool
	for _, r := range secret {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return dErrors.New(dErrors.CodeValidation, "secret must contain an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "generate secret")
	}
	return alphabet[n.Int64()], nil
}

func shuffle(buf []byte) error {
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "generate secret")
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}
	return nil
}
