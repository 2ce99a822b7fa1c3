package authapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeData(rec, http.StatusCreated, map[string]string{"id": "x"}, "created")

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("cache control = %q", cc)
	}

	var env struct {
		Status  int               `json:"status"`
		Data    map[string]string `json:"data"`
		Message string            `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != http.StatusCreated || env.Data["id"] != "x" || env.Message != "created" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestWriteErrorOmitsData(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "user does not exist")

	if strings.Contains(rec.Body.String(), `"data"`) {
		t.Fatalf("error envelope must omit data: %s", rec.Body.String())
	}
	var env struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != http.StatusNotFound || env.Message != "user does not exist" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	decode := func(body string, max int64) error {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
		var p payload
		return decodeJSON(httptest.NewRecorder(), req, max, &p)
	}

	if err := decode(`{"name":"x"}`, 1<<20); err != nil {
		t.Fatalf("valid body: %v", err)
	}
	if err := decode(`{"name":"x","extra":true}`, 1<<20); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if err := decode(`{"name":"x"}{"name":"y"}`, 1<<20); err == nil {
		t.Fatalf("trailing data accepted")
	}
	if err := decode(`{bogus`, 1<<20); err == nil {
		t.Fatalf("malformed body accepted")
	}
	if err := decode(`{"name":"`+strings.Repeat("a", 100)+`"}`, 16); err == nil {
		t.Fatalf("oversized body accepted")
	}
}
