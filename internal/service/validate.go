package service

import (
	"strings"

	"github.com/sakif/holiday-postcards/internal/apperror"
	"github.com/sakif/holiday-postcards/internal/model"
)

// Messages shown to the visitor when a required field is blank.
const (
	MsgNameRequired    = "Please fill up Your Name."
	MsgAddressRequired = "Please fill up Your Address"
	MsgThemeRequired   = "Please pick a Postcard Theme"
)

// Validate trims every known field of a decoded signup body and checks the
// required ones in order name, address, postcardTheme. Only the first
// failure is reported. Values that are not JSON strings count as empty.
//
// Validate has no side effects.
func Validate(raw map[string]any) (model.SignupPayload, error) {
	p := model.SignupPayload{
		Name:           sanitize(raw["name"]),
		Address:        sanitize(raw["address"]),
		PostcardTheme:  sanitize(raw["postcardTheme"]),
		Contact:        sanitize(raw["contact"]),
		SongSuggestion: sanitize(raw["songSuggestion"]),
		TurnstileToken: sanitize(raw["turnstileToken"]),
	}

	switch {
	case p.Name == "":
		return model.SignupPayload{}, apperror.ValidationFailed("name", MsgNameRequired)
	case p.Address == "":
		return model.SignupPayload{}, apperror.ValidationFailed("address", MsgAddressRequired)
	case p.PostcardTheme == "":
		return model.SignupPayload{}, apperror.ValidationFailed("postcardTheme", MsgThemeRequired)
	}

	return p, nil
}

func sanitize(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
