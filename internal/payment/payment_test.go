package payment

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArtifacts = Artifacts{
	MerchantName: "PET SHOP",
	MerchantCity: "SAO PAULO",
	PixKey:       "pagamentos@petshop.example",
	BaseURL:      "https://pay.petshop.example/",
	PixTTL:       30 * time.Minute,
	BoletoTTL:    72 * time.Hour,
}

func TestFees(t *testing.T) {
	pct := decimal.RequireFromString("3.99")
	tests := []struct {
		typ     model.InstrumentType
		wantFee string
		wantNet string
	}{
		{model.InstrumentPix, "0.00", "100.00"},
		{model.InstrumentBoleto, "0.00", "100.00"},
		{model.InstrumentCreditCard, "3.99", "96.01"},
		{model.InstrumentDebitCard, "3.99", "96.01"},
		{model.InstrumentWallet, "3.99", "96.01"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			fee, net := Fees(tt.typ, decimal.NewFromInt(100), pct)
			assert.Equal(t, tt.wantFee, fee.StringFixed(2))
			assert.Equal(t, tt.wantNet, net.StringFixed(2))
		})
	}
}

func TestInstallmentAmount(t *testing.T) {
	assert.Equal(t, "53.24", InstallmentAmount(decimal.RequireFromString("159.72"), 3).StringFixed(2))
	assert.Equal(t, "13.31", InstallmentAmount(decimal.RequireFromString("159.72"), 12).StringFixed(2))
	assert.Equal(t, "159.72", InstallmentAmount(decimal.RequireFromString("159.72"), 0).StringFixed(2))
}

func TestArtifacts_Pix(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.MustParse("6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b")

	pix := testArtifacts.Pix(id, decimal.NewFromInt(100), now)

	assert.True(t, strings.HasPrefix(pix.Code, "000201"))
	assert.Contains(t, pix.Code, "br.gov.bcb.pix")
	assert.Contains(t, pix.Code, "5406100.00")
	assert.Contains(t, pix.Code, "5802BR")
	assert.Regexp(t, regexp.MustCompile(`6304[0-9A-F]{4}$`), pix.Code)

	body := pix.Code[:len(pix.Code)-4]
	assert.Equal(t, pix.Code[len(pix.Code)-4:], strings.ToUpper(hex4(crc16(body))))

	assert.Equal(t, "https://pay.petshop.example/pix/"+id.String()+"/qr.png", pix.QRCode)
	assert.Equal(t, now.Add(30*time.Minute), pix.ExpiresAt)
}

func hex4(v uint16) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[v>>12&0xF], digits[v>>8&0xF], digits[v>>4&0xF], digits[v&0xF]})
}

func TestCRC16_KnownVector(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), crc16("123456789"))
}

func TestArtifacts_Boleto(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	boleto := testArtifacts.Boleto(id, decimal.RequireFromString("159.72"), now)

	require.Len(t, boleto.Barcode, 47)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{47}$`), boleto.Barcode)
	assert.True(t, strings.HasPrefix(boleto.Barcode, "0019"))
	assert.True(t, strings.HasSuffix(boleto.Barcode, "0000015972"))
	assert.Equal(t, now.Add(72*time.Hour), boleto.ExpiresAt)
	assert.Equal(t, "https://pay.petshop.example/boleto/"+id.String(), boleto.URL)

	for _, field := range []string{boleto.Barcode[0:9], boleto.Barcode[10:20], boleto.Barcode[21:31]} {
		assert.Len(t, mod10(field), 1)
	}
	assert.Equal(t, mod10(boleto.Barcode[0:9]), boleto.Barcode[9:10])
	assert.Equal(t, mod10(boleto.Barcode[10:20]), boleto.Barcode[20:21])
	assert.Equal(t, mod10(boleto.Barcode[21:31]), boleto.Barcode[31:32])
}

func TestDueFactor(t *testing.T) {
	assert.Equal(t, 1000, dueFactor(time.Date(2000, 7, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 9999, dueFactor(time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1000, dueFactor(time.Date(2025, 2, 22, 0, 0, 0, 0, time.UTC)))
}

func TestSimulatedGateway(t *testing.T) {
	ctx := context.Background()
	req := AuthorizationRequest{PaymentID: uuid.New(), Amount: decimal.NewFromInt(100), InstrumentType: model.InstrumentCreditCard, Installments: 1}

	always := NewSimulatedGateway(1, 1)
	for i := 0; i < 20; i++ {
		auth, err := always.Authorize(ctx, req)
		require.NoError(t, err)
		assert.True(t, auth.Approved)
		assert.True(t, strings.HasPrefix(auth.Code, "AUTH"))
	}

	never := NewSimulatedGateway(0, 1)
	auth, err := never.Authorize(ctx, req)
	require.NoError(t, err)
	assert.False(t, auth.Approved)
	assert.NotEmpty(t, auth.Reason)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = always.Authorize(cancelled, req)
	assert.ErrorIs(t, err, context.Canceled)
}
