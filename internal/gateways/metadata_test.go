package gateways

import (
	"encoding/json"
	"testing"

	"stitchhub_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Validate(t *testing.T) {
	t.Parallel()

	valid := Metadata{
		Kind:  models.TransactionKindOneTime,
		Email: "payer@example.com",
	}
	assert.NoError(t, valid.Validate())

	missingEmail := valid
	missingEmail.Email = ""
	assert.Error(t, missingEmail.Validate())

	unknownKind := valid
	unknownKind.Kind = "refund"
	assert.Error(t, unknownKind.Validate())

	installment := Metadata{
		Kind:              models.TransactionKindInstallment,
		Email:             "payer@example.com",
		TransactionID:     "plan-1",
		InstallmentNumber: 2,
		TotalInstallments: 3,
	}
	assert.NoError(t, installment.Validate())

	outOfRange := installment
	outOfRange.InstallmentNumber = 4
	assert.Error(t, outOfRange.Validate(), "номер куска больше общего числа")

	zeroNumber := installment
	zeroNumber.InstallmentNumber = 0
	assert.Error(t, zeroNumber.Validate())
}

// TestParseMetadata - провайдеры отдают пустую metadata по-разному
func TestParseMetadata(t *testing.T) {
	t.Parallel()

	_, err := ParseMetadata(nil)
	assert.Error(t, err)

	_, err = ParseMetadata(json.RawMessage(`null`))
	assert.Error(t, err)

	_, err = ParseMetadata(json.RawMessage(`""`))
	assert.Error(t, err)

	_, err = ParseMetadata(json.RawMessage(`not-json`))
	assert.Error(t, err)

	md, err := ParseMetadata(json.RawMessage(`{"kind":"installment","transaction_id":"p1","installment_number":1}`))
	require.NoError(t, err)
	assert.True(t, md.IsInstallment())
	assert.Equal(t, "p1", md.TransactionID)
}
