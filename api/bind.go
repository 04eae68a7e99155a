package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// =============================================================================
// REQUEST BINDING - Decode + validate
// =============================================================================

const maxBodyBytes = 1 << 20

// errBadRequest marks decode and validation failures.
var errBadRequest = errors.New("bad request")

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// getValidator returns the shared validator with english messages and json
// field names.
func getValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

// decodeJSON decodes the body into T and validates it. Unknown fields are
// rejected. An empty body decodes to the zero value when allowEmpty is set.
func decodeJSON[T any](r *http.Request, allowEmpty bool) (T, error) {
	var dst T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return dst, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return dst, fmt.Errorf("%w: unexpected trailing data", errBadRequest)
	}

	if err := getValidator().validate.Struct(dst); err != nil {
		return dst, fmt.Errorf("%w: %s", errBadRequest, validationMessage(err))
	}
	return dst, nil
}

// validationMessage joins the translated messages of every failed field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fe.Translate(getValidator().translator)
	}
	return strings.Join(msgs, "; ")
}
