// Package request разбирает тела HTTP-запросов.
package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
)

// maxBody ограничивает JSON-тело запроса.
const maxBody = 1 << 20

var validate = validator.New()

// DecodeJSON читает JSON-тело в v и проверяет теги validate.
// Пустое или битое тело даёт apperr.ErrValidation.
func DecodeJSON(r *http.Request, v any) error {
	const op = "request.DecodeJSON"
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return apperr.New(apperr.KindValidation, op, "request body is empty")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "invalid request body", err)
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "invalid request body", err)
	}
	return nil
}
