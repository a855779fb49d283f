package usecase

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/centralrestaurante/amigo-central/domain"
)

// decodeArgs decodes model-supplied arguments into out. Types are strict:
// strings never become numbers and fractional numbers never become integers.
// Unknown keys, such as a user_id the model made up, are dropped.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: false,
		ErrorUnused:      false,
		DecodeHook:       rejectFractionalInts,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

func rejectFractionalInts(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected an integer, got %v", f)
		}
	}
	return data, nil
}

func invalidArguments(tool string, err error) domain.ToolOutcome {
	return domain.ErrorOutcome(fmt.Sprintf("invalid arguments for %s: %v", tool, err))
}
