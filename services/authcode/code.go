package authcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strconv"
)

const (
	codeLength      = 6
	codeMin         = 100000
	codeMax         = 999999
	maxCodeAttempts = 5
)

var (
	codePattern = regexp.MustCompile(`^\d{6}$`)
	codeSpan    = big.NewInt(codeMax - codeMin + 1)

	errCodeGeneration = errors.New("could not generate a six-digit code")
)

func generateCode(source io.Reader) (string, error) {
	for range maxCodeAttempts {
		n, err := rand.Int(source, codeSpan)
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}

		code := strconv.FormatInt(n.Int64()+codeMin, 10)
		if len(code) == codeLength {
			return code, nil
		}
	}
	return "", errCodeGeneration
}

func validCodeFormat(code string) bool {
	return codePattern.MatchString(code)
}
