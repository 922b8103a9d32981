package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lojasys/cadastro-sync/internal/models"
)

func TestBuildPayload_NaturalPerson(t *testing.T) {
	c := &models.Customer{
		ID:       1,
		TaxID:    "111.222.333-44",
		Name:     "Maria da Silva",
		Address:  "Rua das Flores",
		AddrNum:  "42",
		District: "Centro",
		ZipCode:  "01001-000",
		City:     "São Paulo",
		Phone:    "11999990000",
		Email:    "maria@example.com",
		EmailNfe: "nfe@example.com",
		Activity: 3,
		CityID:   3550308,
		SellerID: 7,
	}

	p := BuildPayload(c)

	assert.Equal(t, "11122233344", p.PersonIdentificationNumber)
	assert.True(t, p.FinalCostumer, "11-digit tax id is a final consumer")
	assert.Equal(t, documentTypeCPF, p.DocumentType)
	assert.Empty(t, p.StateInscription, "natural persons have no state inscription")
	assert.Equal(t, "01001000", p.CommercialZipCode, "zip code is submitted digits-only")
	assert.Equal(t, countryIDBrazil, p.CountryID)
	assert.Equal(t, customerOrigin, p.CustomerOrigin)
	assert.Equal(t, 3, p.ActivityID)
	assert.Equal(t, 7, p.SellerID)
	assert.Equal(t, 3550308, p.CityID)
}

func TestBuildPayload_Company(t *testing.T) {
	c := &models.Customer{
		ID:        2,
		TaxID:     "12.345.678/0001-90",
		Corporate: true,
		Name:      "Mercado Bom Preço LTDA",
		TradeName: "Bom Preço",
	}

	p := BuildPayload(c)

	assert.Equal(t, "12345678000190", p.PersonIdentificationNumber)
	assert.False(t, p.FinalCostumer, "14-digit tax id is a company")
	assert.Equal(t, documentTypeCNPJ, p.DocumentType)
	assert.True(t, p.Corporate)
	assert.Equal(t, "ISENTO", p.StateInscription, "companies without an inscription on file go out exempt")
	assert.Equal(t, "Bom Preço", p.TradeName)
}
