package service

import (
	"github.com/lojasys/cadastro-sync/internal/models"
	"github.com/lojasys/cadastro-sync/internal/partner"
)

const (
	// Fixed identifiers the partner assigned to this distributor's account.
	customerOrigin = "B2B"
	billingID      = 1
	squareID       = 1

	// IBGE country code for Brazil.
	countryIDBrazil = 1058

	documentTypeCPF  = 1
	documentTypeCNPJ = 2
)

// BuildPayload maps an operational customer row to the partner's customer
// schema.
func BuildPayload(c *models.Customer) partner.CustomerPayload {
	digits := c.TaxIDDigits()
	finalConsumer := models.IsFinalConsumer(digits)

	documentType := documentTypeCNPJ
	if finalConsumer {
		documentType = documentTypeCPF
	}

	// Companies without a state inscription on file go out as exempt;
	// natural persons carry none at all.
	stateInscription := ""
	if c.Corporate {
		stateInscription = "ISENTO"
	}

	return partner.CustomerPayload{
		Corporate:                  c.Corporate,
		Name:                       c.Name,
		TradeName:                  c.TradeName,
		PersonIdentificationNumber: digits,
		StateInscription:           stateInscription,
		CommercialAddress:          c.Address,
		CommercialAddressNumber:    c.AddrNum,
		BusinessDistrict:           c.District,
		CommercialZipCode:          models.SanitizeTaxID(c.ZipCode),
		BillingPhone:               c.Phone,
		Email:                      c.Email,
		EmailNfe:                   c.EmailNfe,
		CustomerOrigin:             customerOrigin,
		FinalCostumer:              finalConsumer,
		BillingID:                  billingID,
		SquareID:                   squareID,
		ActivityID:                 c.Activity,
		BusinessCity:               c.City,
		SellerID:                   c.SellerID,
		CityID:                     c.CityID,
		CountryID:                  countryIDBrazil,
		DocumentType:               documentType,
	}
}
