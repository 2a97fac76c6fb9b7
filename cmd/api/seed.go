package main

import (
	"time"

	"petshop/internal/model"
	"petshop/internal/repository/memory"

	"github.com/shopspring/decimal"
)

// seedDemoData loads the same catalogue and checkout options the database
// migrations insert, so the memory store starts usable.
func seedDemoData(store *memory.Store) {
	store.SeedCheckoutOptions(
		[]model.PaymentMethod{
			{ID: "credit_card", Name: "Cartão de crédito", Type: model.InstrumentCreditCard, Active: true},
			{ID: "debit_card", Name: "Cartão de débito", Type: model.InstrumentDebitCard, Active: true},
			{ID: "pix", Name: "PIX", Type: model.InstrumentPix, Active: true},
			{ID: "boleto", Name: "Boleto bancário", Type: model.InstrumentBoleto, Active: true},
			{ID: "wallet", Name: "Carteira digital", Type: model.InstrumentWallet, Active: false},
		},
		[]model.ShippingMethod{
			{ID: "standard", Name: "Entrega padrão", Carrier: "Correios PAC", Cost: decimal.RequireFromString("15.90"), EstimatedDays: 7, Active: true},
			{ID: "express", Name: "Entrega expressa", Carrier: "Correios SEDEX", Cost: decimal.RequireFromString("29.90"), EstimatedDays: 2, Active: true},
			{ID: "pickup", Name: "Retirar na loja", Cost: decimal.Zero, Active: true},
		},
	)

	now := time.Now().UTC()
	product := func(id, name, category, price, sale string, stock int, active bool) model.Product {
		p := model.Product{
			ID:        id,
			Name:      name,
			Category:  category,
			Price:     decimal.RequireFromString(price),
			Stock:     stock,
			Active:    active,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if sale != "" {
			s := decimal.RequireFromString(sale)
			p.SalePrice = &s
		}
		return p
	}

	store.SeedProducts(
		product("racao-golden-15kg", "Ração Golden Adulto 15kg", "racao", "189.90", "", 120, true),
		product("racao-premier-gatos-7kg", "Ração Premier Gatos Castrados 7kg", "racao", "219.90", "199.90", 80, true),
		product("petisco-bifinho-500g", "Bifinho de Carne 500g", "petiscos", "29.90", "", 300, true),
		product("coleira-peitoral-m", "Coleira Peitoral Ajustável M", "acessorios", "79.90", "", 45, true),
		product("arranhador-torre", "Arranhador Torre 3 Andares", "acessorios", "349.90", "299.90", 12, true),
		product("areia-sanitaria-4kg", "Areia Sanitária Biodegradável 4kg", "higiene", "39.90", "", 200, true),
		product("shampoo-neutro-500ml", "Shampoo Neutro 500ml", "higiene", "24.90", "", 150, true),
		product("brinquedo-mordedor", "Mordedor de Borracha", "brinquedos", "19.90", "", 0, false),
	)
}
