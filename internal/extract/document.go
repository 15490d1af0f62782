package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// document is the subset of a Document AI response the extractor reads. Entities may sit at
// the top level or under "document".
type document struct {
	Entities []entity `json:"entities"`
	Document *struct {
		Entities []entity `json:"entities"`
	} `json:"document"`
}

func (d *document) entities() []entity {
	if d.Entities == nil && d.Document != nil {
		return d.Document.Entities
	}
	return d.Entities
}

type entity struct {
	Type            string           `json:"type"`
	MentionText     string           `json:"mentionText"`
	NormalizedValue *normalizedValue `json:"normalizedValue"`
	Properties      []entity         `json:"properties"`
}

type normalizedValue struct {
	Text       string          `json:"text"`
	MoneyValue *moneyValue     `json:"moneyValue"`
	FloatValue json.RawMessage `json:"floatValue"`
}

// Units and Nanos are kept raw: protobuf JSON quotes int64 values, and a bad value must
// degrade the amount to absent instead of failing the document.
type moneyValue struct {
	CurrencyCode string          `json:"currencyCode"`
	Units        json.RawMessage `json:"units"`
	Nanos        json.RawMessage `json:"nanos"`
}

// rawInt parses a JSON number or quoted integer. Missing and null count as zero.
func rawInt(raw json.RawMessage) (int64, bool) {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	if s == "" || s == "null" {
		return 0, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// rawFloat parses a JSON number or quoted number. ok is false when absent or malformed.
func rawFloat(raw json.RawMessage) (float64, bool) {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func decodeDocument(data []byte) (*document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
