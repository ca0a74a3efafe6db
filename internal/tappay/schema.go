package tappay

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed payment_data.schema.json
var paymentDataSchema string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(paymentDataSchema))
	})
	return schema, schemaErr
}

// ValidatePaymentData checks the opaque storefront blob. An empty blob is valid.
// The returned slice lists every violation; err reports a broken schema or document.
func ValidatePaymentData(data map[string]any) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile payment data schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate payment data: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

func formatViolations(v []string) string {
	return "Payment data are malformed: " + strings.Join(v, "; ")
}
