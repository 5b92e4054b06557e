package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidSerial    = errors.New("invalid serial number")
	ErrInvalidName      = errors.New("invalid employee name")
	ErrInvalidIP        = errors.New("invalid ip address")
	ErrInvalidInventory = errors.New("invalid inventory number")
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	serialPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\. :]+$`)
	macPattern    = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	imeiPattern   = regexp.MustCompile(`^\d{15}$`)
	barcode       = regexp.MustCompile(`^\d{13,}$`)
	hasLetter     = regexp.MustCompile(`[A-Za-z]`)
	hasDigit      = regexp.MustCompile(`\d`)
	unsafeChars   = regexp.MustCompile("[<>\"';|`]")

	// model names and part numbers that recognition tends to confuse with serials
	notSerialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^INV[-\s]?\d+`),
		regexp.MustCompile(`(?i)^PN[-\s]?`),
		regexp.MustCompile(`(?i)^P/N[-\s]?`),
		regexp.MustCompile(`(?i)^MODEL[-\s]?`),
		regexp.MustCompile(`(?i)^[A-Z]{2}\d{3,4}[A-Z]{0,2}-?[A-Z]{1,3}$`),
	}

	dangerousChars = "<>\"'&;|`\n\r"
	sqlKeywords    = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "UNION", "EXEC"}
)

var validate = validator.New()

// Struct runs `validate` tags on a record before it is persisted.
func Struct(v interface{}) error {
	return validate.Struct(v)
}

// ValidateEmail checks the address shape only; deliverability is the transport's problem.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateSerial returns the trimmed serial when it uses the allowed charset and length.
func ValidateSerial(serial string) (string, error) {
	serial = strings.TrimSpace(serial)
	n := utf8.RuneCountInString(serial)
	if n < 1 || n > 50 || !serialPattern.MatchString(serial) {
		return "", ErrInvalidSerial
	}
	return serial, nil
}

// LooksLikeSerial filters text recognition output: MAC addresses, IMEIs,
// barcodes and model-like strings are rejected.
func LooksLikeSerial(serial string) bool {
	n := len(serial)
	if n < 6 || n > 40 {
		return false
	}
	if macPattern.MatchString(serial) || imeiPattern.MatchString(serial) || barcode.MatchString(serial) {
		return false
	}

	letters, digits := hasLetter.MatchString(serial), hasDigit.MatchString(serial)
	if !letters && n < 10 {
		return false
	}
	if !digits && n < 8 {
		return false
	}

	for _, p := range notSerialPatterns {
		if p.MatchString(serial) {
			return false
		}
	}
	return true
}

func ValidateEmployeeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < 2 || n > 100 || strings.ContainsAny(name, dangerousChars) {
		return "", ErrInvalidName
	}
	upper := strings.ToUpper(name)
	for _, kw := range sqlKeywords {
		if strings.Contains(upper, kw) {
			return "", ErrInvalidName
		}
	}
	return name, nil
}

func ValidateIP(ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" || validate.Var(ip, "ip") != nil {
		return "", ErrInvalidIP
	}
	return ip, nil
}

func ValidateInventoryNumber(inv string) (string, error) {
	inv = strings.TrimSpace(inv)
	n := utf8.RuneCountInString(inv)
	if n < 1 || n > 30 || strings.ContainsAny(inv, dangerousChars) {
		return "", ErrInvalidInventory
	}
	return inv, nil
}

// SanitizeInput strips quoting and shell characters and truncates to maxLength runes (0 means no limit).
func SanitizeInput(text string, maxLength int) string {
	text = unsafeChars.ReplaceAllString(strings.TrimSpace(text), "")
	if maxLength > 0 && utf8.RuneCountInString(text) > maxLength {
		text = string([]rune(text)[:maxLength])
	}
	return text
}
