package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeDocument serializes the document as pretty-printed JSON (2-space indent).
// This is both the persisted and the export format.
func EncodeDocument(doc *FinancialDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses data and checks the required top-level keys. That
// check is the only validation: records with an unexpected shape are kept
// as they are.
func DecodeDocument(data []byte) (*FinancialDocument, error) {
	f, err := splitObject(data)
	if err != nil {
		return nil, &InvalidFormatError{Reason: "not a JSON object", Err: err}
	}

	var missing []string
	for _, k := range RequiredKeys {
		if _, ok := f[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &InvalidFormatError{Reason: "missing keys " + strings.Join(missing, ", ")}
	}

	doc := documentFrom(f)
	return &doc, nil
}
