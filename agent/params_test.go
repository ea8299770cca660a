package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDomain = errors.New("domain")

func sampleSpec() ToolSpec {
	return ToolSpec{
		Name: "sample",
		Params: []ParamSpec{
			{Name: "exchange", Type: TypeString, Required: true},
			{Name: "levels", Type: TypeInteger, Default: 5, Min: bound(1), Max: bound(10), Cause: errDomain},
			{Name: "baseSpacing", Type: TypeNumber, Default: 0.02, Aliases: []string{"spacing"}},
			{Name: "model", Type: TypeString, Default: "linear", Enum: []string{"linear", "geometric"}},
			{Name: "dryRun", Type: TypeBoolean, Default: true},
		},
	}
}

func TestBindDefaults(t *testing.T) {
	args, err := sampleSpec().Bind(map[string]interface{}{"exchange": " mexc "})
	require.NoError(t, err)
	assert.Equal(t, "mexc", args.String("exchange"))
	assert.Equal(t, 5, args.Int("levels"))
	assert.Equal(t, 0.02, args.Float("baseSpacing"))
	assert.Equal(t, "linear", args.String("model"))
	assert.True(t, args.Bool("dryRun"))
	assert.True(t, args.Provided("exchange"))
	assert.False(t, args.Provided("levels"))
	assert.True(t, args.Has("levels"))
}

func TestBindAliasAndNormalization(t *testing.T) {
	args, err := sampleSpec().Bind(map[string]interface{}{
		"exchange": "mexc",
		"spacing":  0.05,
		"levels":   json.Number("7"),
		"model":    "GEOMETRIC",
		"dryRun":   false,
		"extra":    "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.05, args.Float("baseSpacing"))
	assert.True(t, args.Provided("baseSpacing"))
	assert.Equal(t, 7, args.Int("levels"))
	assert.Equal(t, "geometric", args.String("model"))
	assert.False(t, args.Bool("dryRun"))
}

func TestBindRejects(t *testing.T) {
	cases := []struct {
		name  string
		raw   map[string]interface{}
		param string
		cause error
	}{
		{"missing required", map[string]interface{}{}, "exchange", nil},
		{"empty required", map[string]interface{}{"exchange": "  "}, "exchange", nil},
		{"wrong type", map[string]interface{}{"exchange": 1.0}, "exchange", nil},
		{"above max", map[string]interface{}{"exchange": "x", "levels": 11.0}, "levels", errDomain},
		{"below min", map[string]interface{}{"exchange": "x", "levels": 0.0}, "levels", errDomain},
		{"fractional integer", map[string]interface{}{"exchange": "x", "levels": 2.5}, "levels", errDomain},
		{"bad enum", map[string]interface{}{"exchange": "x", "model": "fibonacci"}, "model", nil},
		{"bool as string", map[string]interface{}{"exchange": "x", "dryRun": "false"}, "dryRun", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sampleSpec().Bind(tc.raw)
			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.param, pe.Param)
			if tc.cause != nil {
				assert.ErrorIs(t, err, tc.cause)
			}
		})
	}
}

func TestJSONSchema(t *testing.T) {
	schema := sampleSpec().JSONSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"exchange"}, schema["required"])
	props := schema["properties"].(map[string]interface{})
	levels := props["levels"].(map[string]interface{})
	assert.Equal(t, "integer", levels["type"])
	assert.Equal(t, 10.0, levels["maximum"])
	assert.Equal(t, []string{"linear", "geometric"}, props["model"].(map[string]interface{})["enum"])
}
