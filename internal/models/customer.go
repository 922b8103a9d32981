package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// RegistrationIntent says whether a submission creates a brand-new customer
// on the partner platform or updates one that already exists in the ERP.
// The legacy schema stored this as two independent booleans (novo/atualizado);
// the enum makes the both-true and both-false states unrepresentable.
type RegistrationIntent string

const (
	IntentUnknown RegistrationIntent = ""
	IntentNew     RegistrationIntent = "new"
	IntentUpdate  RegistrationIntent = "update"
)

// Customer represents a row of the operational `clientes` table.
// Rows are created by the registration frontend; this engine is the only
// writer of the sync-state fields and never deletes rows.
type Customer struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	TaxID     string `gorm:"column:cpf_cnpj"`
	Corporate bool   `gorm:"column:pessoa_juridica"`

	Name      string     `gorm:"column:nome"`
	TradeName string     `gorm:"column:fantasia"`
	Address   string     `gorm:"column:endereco"`
	AddrNum   string     `gorm:"column:numero"`
	District  string     `gorm:"column:bairro"`
	ZipCode   string     `gorm:"column:cep"`
	City      string     `gorm:"column:cidade"`
	Phone     string     `gorm:"column:telefone"`
	Email     string     `gorm:"column:email"`
	EmailNfe  string     `gorm:"column:email_nfe"`
	Activity  int        `gorm:"column:ramo_atividade"`
	CityID    int        `gorm:"column:cod_cidade"`
	SellerID  int        `gorm:"column:cod_vendedor"`
	BirthDate *time.Time `gorm:"column:data_nascimento"`

	Registered bool    `gorm:"column:registered"`
	Authorized bool    `gorm:"column:authorized"`
	Recused    bool    `gorm:"column:recused"`
	RecusedMsg *string `gorm:"column:recused_msg"`
	Consolid   bool    `gorm:"column:consolid"`
	CodCli     *string `gorm:"column:codcli"`

	// Legacy intent columns, kept so dashboard readers do not break.
	// Use Intent()/SetIntent instead of touching these directly.
	Novo       bool `gorm:"column:novo"`
	Atualizado bool `gorm:"column:atualizado"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Customer) TableName() string {
	return "clientes"
}

// Intent derives the registration intent from the legacy column pair.
func (c *Customer) Intent() RegistrationIntent {
	switch {
	case c.Novo && !c.Atualizado:
		return IntentNew
	case c.Atualizado && !c.Novo:
		return IntentUpdate
	default:
		return IntentUnknown
	}
}

// SetIntent writes the intent back through the legacy column pair so the
// invalid both-true/both-false combinations can never be persisted.
func (c *Customer) SetIntent(intent RegistrationIntent) {
	c.Novo = intent == IntentNew
	c.Atualizado = intent == IntentUpdate
}

// TaxIDDigits returns the tax id with every non-digit stripped. ERP lookups
// and the partner payload both key on this form.
func (c *Customer) TaxIDDigits() string {
	return SanitizeTaxID(c.TaxID)
}

// Eligible reports whether the record may still be submitted.
func (c *Customer) Eligible() bool {
	return !c.Registered && !c.Recused
}

// BeforeSave keeps the recusal invariant: a recused row always carries a
// message, and a non-recused row never does.
func (c *Customer) BeforeSave(*gorm.DB) error {
	if !c.Recused {
		c.RecusedMsg = nil
	}
	return nil
}

// SanitizeTaxID strips formatting (dots, dashes, slashes, spaces) from a
// CPF/CNPJ, leaving digits only.
func SanitizeTaxID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsFinalConsumer reports whether a sanitized tax id belongs to a natural
// person (CPF, 11 digits or fewer) rather than a company (CNPJ).
func IsFinalConsumer(taxIDDigits string) bool {
	return len(taxIDDigits) <= 11
}
