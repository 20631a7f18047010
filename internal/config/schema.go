package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/persistence"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

// Schema generates the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
		FieldNameTag:              "yaml",
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{Type: "string", Description: "Go duration such as 30s or 5m"}
			case reflect.TypeOf(fee.Exchange("")):
				return &jsonschema.Schema{Type: "string", Enum: fee.AllExchanges}
			case reflect.TypeOf(provider.Timeframe("")):
				return &jsonschema.Schema{Type: "string", Enum: timeframeEnum()}
			case reflect.TypeOf(provider.ProviderType("")):
				return &jsonschema.Schema{Type: "string", Enum: []any{provider.ProviderBinance, provider.ProviderPolygon}}
			case reflect.TypeOf(persistence.Backend("")):
				return &jsonschema.Schema{Type: "string", Enum: []any{persistence.BackendFile, persistence.BackendSQLite}}
			}

			return nil
		},
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "argo-dca-config"
	schema.Description = "Configuration schema for the DCA strategy engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// SchemaJSON returns Schema as indented JSON.
func SchemaJSON() (string, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func timeframeEnum() []any {
	timeframes := provider.Timeframes()
	enum := make([]any, len(timeframes))

	for i, tf := range timeframes {
		enum[i] = tf
	}

	return enum
}
