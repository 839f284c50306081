package vault

import (
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
)

// sensitiveField binds one plaintext attribute of a Debtor to its sealed
// column in a DebtorRecord.
type sensitiveField struct {
	name   string
	plain  func(d *models.Debtor) *string
	cipher func(r *models.DebtorRecord) *[]byte
}

// sensitiveFields lists every attribute that is stored only sealed. Adding a
// field here is enough for SaveEncrypted and the read paths to handle it.
var sensitiveFields = []sensitiveField{
	{
		name:   "name",
		plain:  func(d *models.Debtor) *string { return &d.Name },
		cipher: func(r *models.DebtorRecord) *[]byte { return &r.NameCipher },
	},
	{
		name:   "document_id",
		plain:  func(d *models.Debtor) *string { return &d.DocumentID },
		cipher: func(r *models.DebtorRecord) *[]byte { return &r.DocumentCipher },
	},
}
