package inputval

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
)

type createReq struct {
	Title    string  `json:"title" validate:"required,min=3"`
	Category string  `json:"category" validate:"required,category"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Funding  float64 `json:"funding" validate:"gte=0"`
}

func TestDecodeValid(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/events",
		strings.NewReader(`{"title":"Beach Cleanup","category":"environment","email":"org@example.org"}`))
	var req createReq
	if err := Decode(r, &req); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Title != "Beach Cleanup" || req.Category != "environment" {
		t.Errorf("decoded = %+v", req)
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/events", strings.NewReader(""))
	var req createReq
	err := Decode(r, &req)
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if !apperr.Is(err, apperr.Validation) {
		t.Errorf("kind = %d, want Validation", apperr.KindOf(err))
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/events", strings.NewReader(`{"title":`))
	var req createReq
	if err := Decode(r, &req); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDecodeUnknownField(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/events",
		strings.NewReader(`{"title":"ok title","category":"environment","bogus":1}`))
	var req createReq
	if err := Decode(r, &req); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDecodeFieldErrors(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/events",
		strings.NewReader(`{"title":"ab","category":"not-a-category","email":"nope"}`))
	var req createReq
	err := Decode(r, &req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	fe, ok := err.(*FieldsError)
	if !ok {
		t.Fatalf("error type = %T, want *FieldsError", err)
	}
	if _, has := fe.Fields["title"]; !has {
		t.Errorf("missing title field error: %v", fe.Fields)
	}
	if _, has := fe.Fields["category"]; !has {
		t.Errorf("missing category field error: %v", fe.Fields)
	}
	if _, has := fe.Fields["email"]; !has {
		t.Errorf("missing email field error: %v", fe.Fields)
	}

	// FieldsError still classifies as Validation through Unwrap.
	if !apperr.Is(err, apperr.Validation) {
		t.Error("FieldsError does not unwrap to Validation kind")
	}
}

func TestCheckEnumTags(t *testing.T) {
	type reg struct {
		Type   string `validate:"required,oneof=volunteer partner"`
		Status string `validate:"omitempty,regstatus"`
		PType  string `validate:"omitempty,partnershiptype"`
	}

	if err := Check(&reg{Type: "volunteer", Status: "pending", PType: "sponsor"}); err != nil {
		t.Errorf("valid struct rejected: %v", err)
	}
	if err := Check(&reg{Type: "spectator"}); err == nil {
		t.Error("expected error for bad type")
	}
	if err := Check(&reg{Type: "partner", Status: "limbo"}); err == nil {
		t.Error("expected error for bad status")
	}
	if err := Check(&reg{Type: "partner", PType: "benefactor"}); err == nil {
		t.Error("expected error for bad partnership type")
	}
}
