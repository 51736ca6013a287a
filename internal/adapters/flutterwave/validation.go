package flutterwave

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

var (
	digitsPattern   = regexp.MustCompile(`^\d+$`)
	currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern    = regexp.MustCompile(`^\d{6,15}$`)
)

// ValidateCardData checks card fields before encryption. Expected failures
// are returned as messages, never as an error.
func ValidateCardData(card CardData) (bool, []string) {
	return validateCardDataAt(card, time.Now())
}

func validateCardDataAt(card CardData, now time.Time) (bool, []string) {
	var errs []string

	number := strings.ReplaceAll(card.CardNumber, " ", "")
	if !digitsPattern.MatchString(number) || len(number) < 13 || len(number) > 19 || !luhnValid(number) {
		errs = append(errs, "Invalid card number")
	}

	cvv := strings.TrimSpace(card.CVV)
	if !digitsPattern.MatchString(cvv) || len(cvv) < 3 || len(cvv) > 4 {
		errs = append(errs, "Invalid CVV (must be 3-4 digits)")
	}

	month, err := strconv.Atoi(strings.TrimSpace(card.ExpiryMonth))
	if err != nil || month < 1 || month > 12 {
		errs = append(errs, "Invalid expiry month (must be 1-12)")
	}

	year, ok := expiryYear(card.ExpiryYear)
	switch {
	case !ok || year < now.Year():
		errs = append(errs, "Invalid expiry year")
	case year == now.Year() && err == nil && month >= 1 && month < int(now.Month()):
		errs = append(errs, "Card has expired")
	}

	if len(strings.TrimSpace(card.CardholderName)) < 2 {
		errs = append(errs, "Invalid cardholder name")
	}

	return len(errs) == 0, errs
}

// expiryYear accepts four-digit years and two-digit years in the 2000s
func expiryYear(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if !digitsPattern.MatchString(raw) {
		return 0, false
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	switch len(raw) {
	case 2:
		return 2000 + year, true
	case 4:
		return year, true
	default:
		return 0, false
	}
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// PaymentData is the minimum a charge needs before any gateway call
type PaymentData struct {
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	CustomerEmail string
}

// ValidatePaymentData checks amount, currency, reference and optional email
func ValidatePaymentData(data PaymentData) (bool, []string) {
	var errs []string

	if data.Amount.IsZero() {
		errs = append(errs, "Amount is required")
	} else if !data.Amount.IsPositive() {
		errs = append(errs, "Amount must be greater than 0")
	}

	currency := strings.TrimSpace(data.Currency)
	if currency == "" {
		errs = append(errs, "Currency is required")
	} else if !currencyPattern.MatchString(currency) {
		errs = append(errs, "Currency must be a 3-letter code (e.g., UGX)")
	}

	reference := strings.TrimSpace(data.Reference)
	if reference == "" {
		errs = append(errs, "Tx_Ref is required")
	} else if len(reference) < 3 {
		errs = append(errs, "Transaction reference must be at least 3 characters")
	}

	if data.CustomerEmail != "" && !emailPattern.MatchString(data.CustomerEmail) {
		errs = append(errs, "Customer email must be valid")
	}

	return len(errs) == 0, errs
}

// ValidEmail reports whether s looks like a deliverable address
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// MobileMoneyCountry describes one dialing code the gateway supports for mobile money
type MobileMoneyCountry struct {
	CountryCode string
	Currency    string
	Region      string
	Networks    []string
}

// SupportsNetwork matches network names case-insensitively
func (c MobileMoneyCountry) SupportsNetwork(network string) bool {
	for _, n := range c.Networks {
		if strings.EqualFold(n, network) {
			return true
		}
	}
	return false
}

// SupportedCountries is keyed by international dialing code
var SupportedCountries = map[string]MobileMoneyCountry{
	"226": {CountryCode: "226", Currency: "XOF", Region: "West Africa", Networks: []string{"mobicash", "orange"}},
	"237": {CountryCode: "237", Currency: "XAF", Region: "Central Africa", Networks: []string{"mtn", "orange"}},
	"225": {CountryCode: "225", Currency: "XOF", Region: "West Africa", Networks: []string{"moov", "mtn", "orange", "wave"}},
	"233": {CountryCode: "233", Currency: "GHS", Region: "West Africa", Networks: []string{"airteltigo", "mtn", "vodafone"}},
	"254": {CountryCode: "254", Currency: "KES", Region: "East Africa", Networks: []string{"airtel", "mpesa"}},
	"265": {CountryCode: "265", Currency: "MWK", Region: "East Africa", Networks: []string{"airtel"}},
	"250": {CountryCode: "250", Currency: "RWF", Region: "East Africa", Networks: []string{"airtel", "mtn"}},
	"221": {CountryCode: "221", Currency: "XOF", Region: "West Africa", Networks: []string{"emoney", "freemoney", "orange"}},
	"255": {CountryCode: "255", Currency: "TZS", Region: "East Africa", Networks: []string{"airtel", "tigo", "halopesa", "vodafone"}},
	"256": {CountryCode: "256", Currency: "UGX", Region: "East Africa", Networks: []string{"airtel", "mtn"}},
}

// SupportedCountryCodes returns the dialing codes in sorted order
func SupportedCountryCodes() []string {
	codes := make([]string, 0, len(SupportedCountries))
	for code := range SupportedCountries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ValidateMobileMoney checks the country/network/phone triplet against SupportedCountries
func ValidateMobileMoney(countryCode, network, phoneNumber string) (MobileMoneyCountry, error) {
	countryCode = strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	country, ok := SupportedCountries[countryCode]
	if !ok {
		return MobileMoneyCountry{}, pkgerrors.NewValidationError("country_code",
			fmt.Sprintf("Country %s is not supported for mobile money payments", countryCode))
	}

	if !country.SupportsNetwork(network) {
		return MobileMoneyCountry{}, pkgerrors.NewValidationError("network",
			fmt.Sprintf("Network %s is not supported in %s. Supported networks: %s",
				network, countryCode, strings.Join(country.Networks, ", ")))
	}

	if !phonePattern.MatchString(strings.TrimSpace(phoneNumber)) {
		return MobileMoneyCountry{}, pkgerrors.NewValidationError("phone_number",
			"Phone number must be 6-15 digits without the country code")
	}

	return country, nil
}
