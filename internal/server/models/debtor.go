package models

import "time"

// Debtor is the in-memory, plaintext view of a debtor record. Name and
// DocumentID are sensitive: they exist in plaintext only between a
// decrypting read and the end of the request that made it.
type Debtor struct {
	ID string

	Name       string
	DocumentID string // CPF (11 digits) or CNPJ (14 digits)

	Creditor       string
	State          string // UF
	VehicleModel   string
	Stage          string
	ContractNumber string
	Plate          string
	ReferenceDate  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DebtorRecord is the storage representation of a Debtor. Sensitive values
// are sealed; DocumentIndex is a keyed hash of the document digits used for
// equality lookups.
type DebtorRecord struct {
	ID string

	NameCipher     []byte
	DocumentCipher []byte
	DocumentIndex  []byte

	Creditor       string
	State          string
	VehicleModel   string
	Stage          string
	ContractNumber string
	Plate          string
	ReferenceDate  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
