package ledger

import (
	"fmt"
	"regexp"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stellar/go-stellar-sdk/strkey"
)

const maxAddressLength = 100

var opaqueAddressRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// AddressValidator checks that an account identifier is well formed.
type AddressValidator interface {
	ValidateAddress(address string) error
}

// AddressValidatorFunc adapts a function to AddressValidator.
type AddressValidatorFunc func(address string) error

func (f AddressValidatorFunc) ValidateAddress(address string) error {
	return f(address)
}

// Address formats accepted by NewAddressValidator.
const (
	AddressFormatStellar = "stellar"
	AddressFormatSolana  = "solana"
	AddressFormatOpaque  = "opaque"
)

// NewAddressValidator returns the validator for a named format.
func NewAddressValidator(format string) (AddressValidator, error) {
	switch format {
	case AddressFormatStellar:
		return StellarAddresses, nil
	case AddressFormatSolana:
		return SolanaAddresses, nil
	case AddressFormatOpaque:
		return OpaqueAddresses, nil
	default:
		return nil, fmt.Errorf("unknown address format %q: must be one of %s, %s, %s",
			format, AddressFormatStellar, AddressFormatSolana, AddressFormatOpaque)
	}
}

var (
	// StellarAddresses accepts Stellar public account IDs (G...), checking
	// the version byte and CRC16 checksum.
	StellarAddresses AddressValidator = AddressValidatorFunc(func(address string) error {
		if err := checkAddressBasics(address); err != nil {
			return err
		}
		if _, err := strkey.Decode(strkey.VersionByteAccountID, address); err != nil {
			return fmt.Errorf("invalid address format: must be a Stellar account ID: %w", err)
		}
		return nil
	})

	// SolanaAddresses accepts base58 encoded 32-byte public keys.
	SolanaAddresses AddressValidator = AddressValidatorFunc(func(address string) error {
		if err := checkAddressBasics(address); err != nil {
			return err
		}
		if _, err := solanago.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid address format: %w", err)
		}
		return nil
	})

	// OpaqueAddresses accepts any short alphanumeric token.
	OpaqueAddresses AddressValidator = AddressValidatorFunc(func(address string) error {
		if err := checkAddressBasics(address); err != nil {
			return err
		}
		if !opaqueAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid address format: only letters, digits, '-' and '_' are allowed")
		}
		return nil
	})
)

func checkAddressBasics(address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if len(address) > maxAddressLength {
		return fmt.Errorf("address too long: maximum length is %d characters", maxAddressLength)
	}
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("invalid characters in address: control characters not allowed")
		}
	}
	return nil
}
