package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"commerce-agent/internal/domain"
)

type etaArgs struct {
	ZipCode flexString `json:"zip_code" validate:"required,zip"`
}

type eta struct{}

func (eta) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        ETA,
		Description: "Estimate the shipping window to a 5 or 6 digit postal code.",
		Parameters: json.RawMessage(`{
			"type":"object",
			"properties":{
				"zip_code":{"type":"string","description":"Destination postal code, 5 or 6 digits."}
			},
			"required":["zip_code"]
		}`),
	}
}

func (eta) Invoke(_ context.Context, raw map[string]any) (any, error) {
	var args etaArgs
	if err := decodeArgs(raw, &args); err != nil {
		var toolErr *Error
		// A missing or malformed code is still an invalid zip to the caller.
		if errors.As(err, &toolErr) && toolErr.Code == CodeInvalidArguments {
			toolErr.Code = CodeInvalidZip
		}
		return nil, err
	}
	zip := strings.TrimSpace(string(args.ZipCode))
	return domain.ShippingEstimate{
		ZipCode: zip,
		Window:  fmt.Sprintf("Shipping to zip code %s typically takes 2-5 business days.", zip),
	}, nil
}
