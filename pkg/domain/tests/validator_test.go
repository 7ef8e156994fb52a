package tests

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/domain/model"
	"storefront/pkg/domain/service"
	"storefront/pkg/domain/validation"
)

func newValidator(t *testing.T) *validation.OrderValidator {
	v, err := validation.NewOrderValidator("PT")
	require.NoError(t, err)
	return v
}

func validOrder() validation.RawOrder {
	return validation.RawOrder{
		"buyerFirstName":   "João",
		"buyerLastName":    "Silva",
		"buyerVatId":       "123456789",
		"buyerEmail":       "joao.silva@example.com",
		"buyerMobilePhone": "912345678",
		"productId":        service.DefaultCatalog()[0].ID.String(),
		"productSize":      "M",
		"productQuantity":  float64(1),
	}
}

func with(raw validation.RawOrder, key string, value any) validation.RawOrder {
	clone := validation.RawOrder{}
	for k, v := range raw {
		clone[k] = v
	}
	clone[key] = value
	return clone
}

func without(raw validation.RawOrder, key string) validation.RawOrder {
	clone := with(raw, key, nil)
	delete(clone, key)
	return clone
}

func validationFields(t *testing.T, err error) map[string][]string {
	var verr *validation.Error
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.ByField()
}

func TestValidateOrder(t *testing.T) {
	v := newValidator(t)

	t.Run("Success", func(t *testing.T) {
		payload, err := v.Validate(validOrder())

		require.NoError(t, err)
		assert.Equal(t, "João", payload.Buyer.FirstName)
		assert.Equal(t, "Silva", payload.Buyer.LastName)
		assert.Equal(t, "123456789", payload.Buyer.VatID)
		assert.Equal(t, "joao.silva@example.com", payload.Buyer.Email)
		require.NotNil(t, payload.BuyerMobilePhone)
		assert.Equal(t, "+351912345678", *payload.BuyerMobilePhone)
		assert.Equal(t, model.Guest, payload.BuyerType)
		assert.Equal(t, service.DefaultCatalog()[0].ID, payload.ProductID)
		assert.Nil(t, payload.ProductPersonalizedName)
		assert.Nil(t, payload.ProductPersonalizedNumber)
		assert.Equal(t, "M", payload.ProductSize)
		assert.Equal(t, 1, payload.ProductQuantity)
	})

	t.Run("Buyer type is parsed", func(t *testing.T) {
		payload, err := v.Validate(with(validOrder(), "buyerType", "ATHLETE"))
		require.NoError(t, err)
		assert.Equal(t, model.Athlete, payload.BuyerType)
	})

	t.Run("Unknown buyer type", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "buyerType", "VIP"))
		assert.Contains(t, validationFields(t, err), "buyerType")
	})

	t.Run("Empty optional strings are absent", func(t *testing.T) {
		raw := with(with(with(validOrder(), "buyerMobilePhone", ""), "productPersonalizedName", ""), "productPersonalizedNumber", "")
		payload, err := v.Validate(raw)

		require.NoError(t, err)
		assert.Nil(t, payload.BuyerMobilePhone)
		assert.Nil(t, payload.ProductPersonalizedName)
		assert.Nil(t, payload.ProductPersonalizedNumber)
	})

	t.Run("Name length boundaries", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "buyerFirstName", "Zé"))
		assert.NoError(t, err)
		_, err = v.Validate(with(validOrder(), "buyerFirstName", strings.Repeat("a", 32)))
		assert.NoError(t, err)
		_, err = v.Validate(with(validOrder(), "buyerLastName", strings.Repeat("b", 50)))
		assert.NoError(t, err)

		_, err = v.Validate(with(validOrder(), "buyerFirstName", "J"))
		assert.Equal(t, []string{"O nome próprio deve conter, pelo menos, 2 caracteres."}, validationFields(t, err)["buyerFirstName"])
		_, err = v.Validate(with(validOrder(), "buyerFirstName", strings.Repeat("a", 33)))
		assert.Contains(t, validationFields(t, err), "buyerFirstName")
		_, err = v.Validate(with(validOrder(), "buyerLastName", strings.Repeat("b", 51)))
		assert.Contains(t, validationFields(t, err), "buyerLastName")
	})

	t.Run("Vat id rules", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "buyerVatId", "12345678"))
		assert.Equal(t, []string{"O NIF deve ter 9 dígitos."}, validationFields(t, err)["buyerVatId"])
		_, err = v.Validate(with(validOrder(), "buyerVatId", "12345678a"))
		assert.Equal(t, []string{"O NIF deve conter apenas dígitos."}, validationFields(t, err)["buyerVatId"])
		_, err = v.Validate(with(validOrder(), "buyerVatId", "123456788"))
		assert.Equal(t, []string{"NIF inválido."}, validationFields(t, err)["buyerVatId"])
	})

	t.Run("Invalid email", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "buyerEmail", "joao.silva"))
		assert.Equal(t, []string{"Este endereço de e-mail não é válido."}, validationFields(t, err)["buyerEmail"])
	})

	t.Run("Email length boundary", func(t *testing.T) {
		emailOfLength := func(n int) string {
			local := strings.Repeat("a", 64) + "@"
			domain := strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "."
			return local + domain + strings.Repeat("d", n-len(local)-len(domain)-3) + ".pt"
		}
		require.Len(t, emailOfLength(254), 254)

		payload, err := v.Validate(with(validOrder(), "buyerEmail", emailOfLength(254)))
		require.NoError(t, err)
		assert.Equal(t, emailOfLength(254), payload.Buyer.Email)

		_, err = v.Validate(with(validOrder(), "buyerEmail", emailOfLength(255)))
		assert.Equal(t, []string{"O endereço de e-mail não deve conter mais do que 254 caracteres."}, validationFields(t, err)["buyerEmail"])
	})

	t.Run("Invalid phone", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "buyerMobilePhone", "12345"))
		assert.Contains(t, validationFields(t, err), "buyerMobilePhone")
	})

	t.Run("Personalized name length", func(t *testing.T) {
		payload, err := v.Validate(with(validOrder(), "productPersonalizedName", strings.Repeat("n", 15)))
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("n", 15), *payload.ProductPersonalizedName)

		_, err = v.Validate(with(validOrder(), "productPersonalizedName", strings.Repeat("n", 16)))
		assert.Contains(t, validationFields(t, err), "productPersonalizedName")
	})

	t.Run("Personalized number range", func(t *testing.T) {
		for _, number := range []any{float64(0), float64(99), "7"} {
			payload, err := v.Validate(with(validOrder(), "productPersonalizedNumber", number))
			require.NoError(t, err, number)
			require.NotNil(t, payload.ProductPersonalizedNumber)
		}
		for _, number := range []any{float64(-1), float64(100), float64(7.5), "sete", true} {
			_, err := v.Validate(with(validOrder(), "productPersonalizedNumber", number))
			assert.Contains(t, validationFields(t, err), "productPersonalizedNumber", number)
		}
	})

	t.Run("Quantity is coerced and must be positive", func(t *testing.T) {
		payload, err := v.Validate(with(validOrder(), "productQuantity", "3"))
		require.NoError(t, err)
		assert.Equal(t, 3, payload.ProductQuantity)

		for _, quantity := range []any{float64(0), float64(-2), float64(1.5), "x"} {
			_, err := v.Validate(with(validOrder(), "productQuantity", quantity))
			assert.Contains(t, validationFields(t, err), "productQuantity", quantity)
		}
		_, err = v.Validate(without(validOrder(), "productQuantity"))
		assert.Equal(t, []string{"Deve ser um número inteiro."}, validationFields(t, err)["productQuantity"])
	})

	t.Run("Product id must be a uuid", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "productId", "camisola-principal"))
		assert.Contains(t, validationFields(t, err), "productId")
	})

	t.Run("Non text values are rejected", func(t *testing.T) {
		_, err := v.Validate(with(validOrder(), "buyerFirstName", float64(42)))
		assert.Equal(t, []string{"Valor inválido."}, validationFields(t, err)["buyerFirstName"])
	})

	t.Run("Check keeps the valid fields", func(t *testing.T) {
		raw := with(with(validOrder(), "buyerFirstName", "J"), "productQuantity", float64(0))

		payload, verr, err := v.Check(raw)

		require.NoError(t, err)
		require.NotNil(t, payload)
		assert.ElementsMatch(t, []string{"buyerFirstName", "productQuantity"}, keys(verr.ByField()))
		assert.Empty(t, payload.Buyer.FirstName)
		assert.Zero(t, payload.ProductQuantity)
		assert.Equal(t, "Silva", payload.Buyer.LastName)
		assert.Equal(t, "M", payload.ProductSize)
		assert.Equal(t, service.DefaultCatalog()[0].ID, payload.ProductID)
	})

	t.Run("All violations are reported together", func(t *testing.T) {
		raw := without(without(validOrder(), "buyerEmail"), "productSize")
		raw["buyerVatId"] = "000000000"
		_, err := v.Validate(raw)

		fields := validationFields(t, err)
		assert.Len(t, fields, 3)
		assert.Contains(t, fields, "buyerEmail")
		assert.Contains(t, fields, "buyerVatId")
		assert.Contains(t, fields, "productSize")
		for _, messages := range fields {
			assert.Len(t, messages, 1)
		}
	})
}

func keys(m map[string][]string) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}
