package models

// PairingScheme names one of the fixed type pairings the engine supports.
// Only pairs listed in the compatibility table below may ever be matched;
// everything else (including same-type pairs) is rejected before scoring.
type PairingScheme string

const (
	// SchemeOutputWithholding pairs output tax invoices with withholding
	// certificates received from the counterparty.
	SchemeOutputWithholding PairingScheme = "invoice_out:withholding_cert"

	// SchemeInputBank pairs input invoices with the bank statement
	// transactions that paid them.
	SchemeInputBank PairingScheme = "invoice_in:bank_transaction"
)

// pairingTable is the explicit compatibility table: side A type and side B
// type for each scheme.
var pairingTable = map[PairingScheme][2]SourceType{
	SchemeOutputWithholding: {SourceInvoiceOut, SourceWithholdingCert},
	SchemeInputBank:         {SourceInvoiceIn, SourceBankTransaction},
}

// AllPairingSchemes returns the supported schemes in a stable order
func AllPairingSchemes() []PairingScheme {
	return []PairingScheme{SchemeOutputWithholding, SchemeInputBank}
}

// String returns the string representation of PairingScheme
func (p PairingScheme) String() string {
	return string(p)
}

// IsValid checks if the scheme is in the compatibility table
func (p PairingScheme) IsValid() bool {
	_, ok := pairingTable[p]
	return ok
}

// Sides returns the source type expected on side A and side B of the scheme
func (p PairingScheme) Sides() (SourceType, SourceType) {
	sides := pairingTable[p]
	return sides[0], sides[1]
}

// Accepts reports whether a record of type a may sit on side A and a record
// of type b on side B of this scheme
func (p PairingScheme) Accepts(a, b SourceType) bool {
	sides, ok := pairingTable[p]
	if !ok {
		return false
	}
	return sides[0] == a && sides[1] == b
}

// SchemeFor returns the scheme that pairs the two source types, in either
// order, or false when no scheme covers them
func SchemeFor(a, b SourceType) (PairingScheme, bool) {
	for scheme, sides := range pairingTable {
		if (sides[0] == a && sides[1] == b) || (sides[0] == b && sides[1] == a) {
			return scheme, true
		}
	}
	return "", false
}
