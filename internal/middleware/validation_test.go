package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type testLine struct {
	ID       string  `json:"id" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gt=0"`
}

type testSaleRequest struct {
	Items         []testLine `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string     `json:"payment_method" validate:"omitempty,oneof=cash card split"`
}

type testLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func newJSONRequest(body interface{}) *bytes.Reader {
	raw, _ := json.Marshal(body)
	return bytes.NewReader(raw)
}

// Feature: velvet-pos, Property 35: Required field validation works
// Validates: Requirements 6
func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing required fields are rejected", prop.ForAll(
		func(includeEmail bool, includePassword bool) bool {
			reqMap := make(map[string]interface{})
			if includeEmail {
				reqMap["email"] = "staff@velvet.com"
			}
			if includePassword {
				reqMap["password"] = "secret"
			}

			req := httptest.NewRequest("POST", "/api/auth/login", newJSONRequest(reqMap))
			var login testLoginRequest
			err := DecodeAndValidate(req, &login)

			if includeEmail && includePassword {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: velvet-pos, Property 36: Line quantities must be positive
// Validates: Requirements 4.1
func TestProperty_LineQuantityValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("non-positive quantities are rejected with the JSON path", prop.ForAll(
		func(quantity int) bool {
			body := map[string]interface{}{
				"items": []map[string]interface{}{{"id": "prod_1", "price": 24.99, "quantity": quantity}},
			}
			req := httptest.NewRequest("POST", "/api/transactions", newJSONRequest(body))

			var sale testSaleRequest
			err := DecodeAndValidate(req, &sale)
			if quantity > 0 {
				return err == nil
			}

			formatted := FormatValidationErrors(err)
			return len(formatted) == 1 && formatted[0].Field == "items[0].quantity"
		},
		gen.IntRange(-5, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"not-an-email"}`))

	var login testLoginRequest
	err := DecodeAndValidate(req, &login)
	formatted := FormatValidationErrors(err)

	if len(formatted) != 2 {
		t.Fatalf("expected 2 errors, got %v", formatted)
	}
	if formatted[0].Field != "email" || formatted[0].Message != "Invalid email format" {
		t.Fatalf("unexpected first error %+v", formatted[0])
	}
	if formatted[1].Field != "password" || formatted[1].Message != "This field is required" {
		t.Fatalf("unexpected second error %+v", formatted[1])
	}
}

func TestOneOfMessage(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/transactions",
		strings.NewReader(`{"items":[{"id":"prod_1","price":1,"quantity":1}],"payment_method":"barter"}`))

	var sale testSaleRequest
	formatted := FormatValidationErrors(DecodeAndValidate(req, &sale))
	if len(formatted) != 1 || formatted[0].Field != "payment_method" {
		t.Fatalf("unexpected errors %v", formatted)
	}
	if !strings.HasPrefix(formatted[0].Message, "Value must be one of") {
		t.Fatalf("unexpected message %q", formatted[0].Message)
	}
}

func TestMalformedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":`))

	var login testLoginRequest
	err := DecodeAndValidate(req, &login)
	if !errors.Is(err, ErrMalformedBody) {
		t.Fatalf("expected ErrMalformedBody, got %v", err)
	}
	if FormatValidationErrors(err) != nil {
		t.Fatal("malformed bodies carry no field errors")
	}
}

func TestDecodeFieldsKeepsNumbers(t *testing.T) {
	req := httptest.NewRequest("PUT", "/api/inventory/prod_1", strings.NewReader(`{"price": 24.990, "stock": 12, "name": "Ruby"}`))

	fields, err := DecodeFields(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price, ok := fields["price"].(json.Number); !ok || price.String() != "24.990" {
		t.Fatalf("price should stay a json.Number, got %#v", fields["price"])
	}
	if fields["name"] != "Ruby" {
		t.Fatalf("unexpected name %#v", fields["name"])
	}

	for _, body := range []string{`null`, `[1,2]`, `oops`} {
		_, err := DecodeFields(httptest.NewRequest("PUT", "/api/inventory/prod_1", strings.NewReader(body)))
		if !errors.Is(err, ErrMalformedBody) {
			t.Fatalf("body %s: expected ErrMalformedBody, got %v", body, err)
		}
	}
}
