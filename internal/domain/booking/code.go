package booking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// CodeGenerator issues booking codes for a date.
type CodeGenerator func(date time.Time) (string, error)

// RandomCodes returns a generator that reads its suffix from src.
func RandomCodes(src io.Reader) CodeGenerator {
	return func(date time.Time) (string, error) {
		return NewBookingCode(date, src)
	}
}

// NewBookingCode renders BK-YYYYMMDD-XXXX where XXXX is four uppercase hex
// digits read from src. A nil src uses crypto/rand.
func NewBookingCode(date time.Time, src io.Reader) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	var b [2]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return "", fmt.Errorf("read booking code suffix: %w", err)
	}
	return fmt.Sprintf("BK-%s-%s", date.Format("20060102"), strings.ToUpper(hex.EncodeToString(b[:]))), nil
}
