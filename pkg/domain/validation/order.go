package validation

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/spf13/cast"

	"storefront/pkg/domain/model"
)

// RawOrder is a submission exactly as decoded from the request body.
type RawOrder map[string]any

type OrderPlacementPayload struct {
	Buyer                     model.BuyerIdentity
	BuyerMobilePhone          *string
	BuyerType                 model.BuyerType
	ProductID                 uuid.UUID
	ProductPersonalizedName   *string
	ProductPersonalizedNumber *int
	ProductSize               string
	ProductQuantity           int
}

type orderFields struct {
	BuyerFirstName            string  `json:"buyerFirstName" validate:"min=2,max=32"`
	BuyerLastName             string  `json:"buyerLastName" validate:"min=2,max=50"`
	BuyerVatID                string  `json:"buyerVatId" validate:"len=9,digits,vatid"`
	BuyerEmail                string  `json:"buyerEmail" validate:"max=254,email"`
	BuyerMobilePhone          *string `json:"buyerMobilePhone" validate:"omitempty,phone"`
	BuyerType                 string  `json:"buyerType" validate:"oneof=GUEST MEMBER ATHLETE"`
	ProductID                 string  `json:"productId" validate:"uuid"`
	ProductPersonalizedName   *string `json:"productPersonalizedName" validate:"omitempty,max=15"`
	ProductPersonalizedNumber *int    `json:"productPersonalizedNumber" validate:"omitempty,min=0,max=99"`
	ProductSize               string  `json:"productSize" validate:"min=1"`
	ProductQuantity           int     `json:"productQuantity" validate:"min=1"`
}

const (
	msgNotText    = "Valor inválido."
	msgNotInteger = "Deve ser um número inteiro."
)

var messages = map[string]map[string]string{
	"buyerFirstName": {
		"min": "O nome próprio deve conter, pelo menos, 2 caracteres.",
		"max": "O nome próprio não deve conter mais do que 32 caracteres.",
	},
	"buyerLastName": {
		"min": "O apelido deve conter, pelo menos, 2 caracteres.",
		"max": "O apelido não deve conter mais do que 50 caracteres.",
	},
	"buyerVatId": {
		"len":    "O NIF deve ter 9 dígitos.",
		"digits": "O NIF deve conter apenas dígitos.",
		"vatid":  "NIF inválido.",
	},
	"buyerEmail": {
		"max":   "O endereço de e-mail não deve conter mais do que 254 caracteres.",
		"email": "Este endereço de e-mail não é válido.",
	},
	"buyerMobilePhone": {"phone": "O número de telemóvel não é válido."},
	"buyerType":        {"oneof": "O tipo de comprador deve ser GUEST, MEMBER ou ATHLETE."},
	"productId":        {"uuid": "O identificador do produto não é válido."},
	"productPersonalizedName": {
		"max": "O nome não deve conter mais do que 15 caracteres.",
	},
	"productPersonalizedNumber": {
		"min": "O número deve estar entre 0 e 99.",
		"max": "O número deve estar entre 0 e 99.",
	},
	"productSize":     {"min": "O tamanho é obrigatório."},
	"productQuantity": {"min": "A quantidade deve ser maior que 0."},
}

type OrderValidator struct {
	validate    *validator.Validate
	phoneRegion string
}

// NewOrderValidator builds a validator that checks phone numbers against phoneRegion (e.g. "PT").
func NewOrderValidator(phoneRegion string) (*OrderValidator, error) {
	v := &OrderValidator{
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		phoneRegion: strings.ToUpper(phoneRegion),
	}

	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	custom := map[string]validator.Func{
		"digits": func(fl validator.FieldLevel) bool { return isDigits(fl.Field().String()) },
		"vatid":  func(fl validator.FieldLevel) bool { return IsValidVatID(fl.Field().String()) },
		"phone":  func(fl validator.FieldLevel) bool { return v.isValidPhone(fl.Field().String()) },
	}
	for tag, fn := range custom {
		if err := v.validate.RegisterValidation(tag, fn); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// Validate checks every field of raw and reports all violations at once.
func (v *OrderValidator) Validate(raw RawOrder) (*OrderPlacementPayload, error) {
	payload, verr, err := v.Check(raw)
	if err != nil {
		return nil, err
	}
	if !verr.Empty() {
		return nil, verr
	}
	return payload, nil
}

// Check runs the same rules as Validate but always returns the collected violations together with
// a payload in which every invalid field is left at its zero value, so callers can add their own.
func (v *OrderValidator) Check(raw RawOrder) (*OrderPlacementPayload, *Error, error) {
	verr := &Error{}
	fields := orderFields{
		BuyerFirstName:            requiredString(raw, "buyerFirstName", verr),
		BuyerLastName:             requiredString(raw, "buyerLastName", verr),
		BuyerVatID:                requiredString(raw, "buyerVatId", verr),
		BuyerEmail:                requiredString(raw, "buyerEmail", verr),
		BuyerMobilePhone:          optionalString(raw, "buyerMobilePhone", verr),
		BuyerType:                 model.Guest.String(),
		ProductID:                 requiredString(raw, "productId", verr),
		ProductPersonalizedName:   optionalString(raw, "productPersonalizedName", verr),
		ProductPersonalizedNumber: optionalInt(raw, "productPersonalizedNumber", verr),
		ProductSize:               requiredString(raw, "productSize", verr),
		ProductQuantity:           requiredInt(raw, "productQuantity", verr),
	}
	if buyerType := optionalString(raw, "buyerType", verr); buyerType != nil {
		fields.BuyerType = *buyerType
	}

	if err := v.validate.Struct(fields); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, nil, err
		}
		for _, fe := range validationErrors {
			if verr.Has(fe.Field()) {
				continue
			}
			verr.Add(fe.Field(), messageFor(fe.Field(), fe.Tag()))
		}
	}

	return v.toPayload(fields, verr), verr, nil
}

func (v *OrderValidator) toPayload(fields orderFields, verr *Error) *OrderPlacementPayload {
	valid := func(field string) bool { return !verr.Has(field) }

	payload := &OrderPlacementPayload{}
	if valid("buyerFirstName") {
		payload.Buyer.FirstName = fields.BuyerFirstName
	}
	if valid("buyerLastName") {
		payload.Buyer.LastName = fields.BuyerLastName
	}
	if valid("buyerVatId") {
		payload.Buyer.VatID = fields.BuyerVatID
	}
	if valid("buyerEmail") {
		payload.Buyer.Email = fields.BuyerEmail
	}
	if valid("buyerMobilePhone") {
		payload.BuyerMobilePhone = v.normalizePhone(fields.BuyerMobilePhone)
	}
	if valid("buyerType") {
		payload.BuyerType, _ = model.ParseBuyerType(fields.BuyerType)
	}
	if valid("productId") {
		payload.ProductID, _ = uuid.Parse(fields.ProductID)
	}
	if valid("productPersonalizedName") {
		payload.ProductPersonalizedName = fields.ProductPersonalizedName
	}
	if valid("productPersonalizedNumber") {
		payload.ProductPersonalizedNumber = fields.ProductPersonalizedNumber
	}
	if valid("productSize") {
		payload.ProductSize = fields.ProductSize
	}
	if valid("productQuantity") {
		payload.ProductQuantity = fields.ProductQuantity
	}
	return payload
}

func (v *OrderValidator) isValidPhone(phone string) bool {
	number, err := phonenumbers.Parse(phone, v.phoneRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}

func (v *OrderValidator) normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	number, err := phonenumbers.Parse(*phone, v.phoneRegion)
	if err != nil {
		return phone
	}
	formatted := phonenumbers.Format(number, phonenumbers.E164)
	return &formatted
}

func messageFor(field, tag string) string {
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return msgNotText
}

func requiredString(raw RawOrder, field string, verr *Error) string {
	value, ok := raw[field]
	if !ok || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		verr.Add(field, msgNotText)
		return ""
	}
	return s
}

// optionalString treats a missing key, null and "" alike: the value is absent.
func optionalString(raw RawOrder, field string, verr *Error) *string {
	s := requiredString(raw, field, verr)
	if s == "" {
		return nil
	}
	return &s
}

func requiredInt(raw RawOrder, field string, verr *Error) int {
	n, ok := coerceInt(raw[field])
	if !ok {
		verr.Add(field, msgNotInteger)
		return 0
	}
	return n
}

func optionalInt(raw RawOrder, field string, verr *Error) *int {
	value, present := raw[field]
	if !present || value == nil || value == "" {
		return nil
	}
	n, ok := coerceInt(value)
	if !ok {
		verr.Add(field, msgNotInteger)
		return nil
	}
	return &n
}

func coerceInt(value any) (int, bool) {
	switch typed := value.(type) {
	case nil, bool:
		return 0, false
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		return n, err == nil
	case float64:
		if typed != math.Trunc(typed) || math.IsInf(typed, 0) {
			return 0, false
		}
	}
	n, err := cast.ToIntE(value)
	return n, err == nil
}
