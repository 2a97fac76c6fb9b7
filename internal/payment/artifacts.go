package payment

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fees returns the processing fee and net amount for an instrument type.
// Instant and deferred instruments carry no fee; cards pay cardFeePercent.
func Fees(t model.InstrumentType, amount, cardFeePercent decimal.Decimal) (fee, net decimal.Decimal) {
	fee = decimal.Zero
	if t.Kind() == model.SettlementCard {
		fee = model.Round2(amount.Mul(cardFeePercent).Div(decimal.NewFromInt(100)))
	}
	return fee, amount.Sub(fee)
}

// InstallmentAmount splits amount evenly, rounded to cents.
func InstallmentAmount(amount decimal.Decimal, installments int) decimal.Decimal {
	if installments < 1 {
		installments = 1
	}
	return model.Round2(amount.Div(decimal.NewFromInt(int64(installments))))
}

// Artifacts builds the PIX and boleto details handed to the customer.
type Artifacts struct {
	MerchantName string
	MerchantCity string
	PixKey       string
	BaseURL      string
	PixTTL       time.Duration
	BoletoTTL    time.Duration
}

// Pix returns a copy-and-paste code in the EMV layout and a QR image link.
func (a Artifacts) Pix(paymentID uuid.UUID, amount decimal.Decimal, now time.Time) model.PixDetails {
	txid := strings.ReplaceAll(paymentID.String(), "-", "")[:25]

	payload := tlv("00", "01") +
		tlv("26", tlv("00", "br.gov.bcb.pix")+tlv("01", a.PixKey)) +
		tlv("52", "0000") +
		tlv("53", "986") +
		tlv("54", amount.StringFixed(2)) +
		tlv("58", "BR") +
		tlv("59", truncate(a.MerchantName, 25)) +
		tlv("60", truncate(a.MerchantCity, 15)) +
		tlv("62", tlv("05", txid)) +
		"6304"
	payload += fmt.Sprintf("%04X", crc16(payload))

	return model.PixDetails{
		Code:      payload,
		QRCode:    fmt.Sprintf("%s/pix/%s/qr.png", strings.TrimRight(a.BaseURL, "/"), paymentID),
		ExpiresAt: now.Add(a.PixTTL),
	}
}

// Boleto returns a bank slip with a 47-digit typeable line.
func (a Artifacts) Boleto(paymentID uuid.UUID, amount decimal.Decimal, now time.Time) model.BoletoDetails {
	due := now.Add(a.BoletoTTL)
	return model.BoletoDetails{
		URL:       fmt.Sprintf("%s/boleto/%s", strings.TrimRight(a.BaseURL, "/"), paymentID),
		Barcode:   typeableLine(paymentID, amount, due),
		ExpiresAt: due,
	}
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// crc16 is CRC-16/CCITT-FALSE, the checksum closing a PIX payload.
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

var boletoEpoch = time.Date(1997, 10, 7, 0, 0, 0, 0, time.UTC)

// dueFactor counts days from the boleto epoch, wrapping back to 1000 after 9999.
func dueFactor(due time.Time) int {
	days := int(due.UTC().Sub(boletoEpoch).Hours() / 24)
	if days > 9999 {
		days = (days-1000)%9000 + 1000
	}
	return days
}

// typeableLine lays out bank 001, currency 9 and a 25-digit free field taken
// from the payment id, with mod-10 field check digits and a mod-11 general digit.
func typeableLine(paymentID uuid.UUID, amount decimal.Decimal, due time.Time) string {
	free := new(big.Int).SetBytes(paymentID[:]).String()
	free = strings.Repeat("0", 25) + free
	free = free[len(free)-25:]

	factor := fmt.Sprintf("%04d", dueFactor(due))
	value := fmt.Sprintf("%010d", amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()%10_000_000_000)

	bankCurrency := "0019"
	barcodeNoDV := bankCurrency + factor + value + free
	general := mod11(barcodeNoDV)

	f1 := bankCurrency + free[0:5]
	f2 := free[5:15]
	f3 := free[15:25]
	return f1 + mod10(f1) + f2 + mod10(f2) + f3 + mod10(f3) + general + factor + value
}

func mod10(digits string) string {
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i]-'0') * weight
		sum += n/10 + n%10
		weight = 3 - weight
	}
	return fmt.Sprint((10 - sum%10) % 10)
}

func mod11(digits string) string {
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	dv := 11 - sum%11
	if dv == 0 || dv == 10 || dv == 11 {
		dv = 1
	}
	return fmt.Sprint(dv)
}
