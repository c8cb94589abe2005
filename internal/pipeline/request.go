package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"tradegraph/internal/types"
)

var validate = validator.New()

// PrepareRequest fills defaults, normalizes symbols and repairs invalid
// fields. A field that fails validation falls back to its default and yields
// a warning; a malformed symbol is dropped and yields an error message.
// Nothing here rejects the request as a whole.
func PrepareRequest(req types.AnalysisRequest) (out types.AnalysisRequest, warnings, errs []string) {
	out = req

	valid, invalid := types.NormalizeSymbols(req.Symbols)
	out.Symbols = valid
	for _, s := range invalid {
		errs = append(errs, fmt.Sprintf("invalid symbol %q: must be 1-5 letters", s))
	}

	// Lower-case tolerance and upper-case horizon, the way users type them.
	out.RiskTolerance = types.RiskTolerance(strings.ToLower(strings.TrimSpace(string(out.RiskTolerance))))
	out.TimeHorizon = types.TimeHorizon(strings.ToUpper(strings.TrimSpace(string(out.TimeHorizon))))

	if err := defaults.Set(&out); err != nil {
		// Tags are static, so this only fires on a broken build.
		panic(fmt.Sprintf("request defaults: %v", err))
	}

	var def types.AnalysisRequest
	_ = defaults.Set(&def)

	err := validate.Struct(out)
	var verrs validator.ValidationErrors
	if err == nil || !errors.As(err, &verrs) {
		return out, warnings, errs
	}

	reset := map[string]bool{}
	for _, fe := range verrs {
		field, _, _ := strings.Cut(fe.StructField(), "[")
		if reset[field] {
			continue
		}
		reset[field] = true

		switch field {
		case "PortfolioSize":
			out.PortfolioSize = def.PortfolioSize
		case "RiskTolerance":
			out.RiskTolerance = def.RiskTolerance
		case "TimeHorizon":
			out.TimeHorizon = def.TimeHorizon
		case "MaxPositions":
			out.MaxPositions = def.MaxPositions
		case "WindowHours":
			out.WindowHours = def.WindowHours
		case "MaxNewsItems":
			out.MaxNewsItems = def.MaxNewsItems
		case "ReportTypes":
			out.ReportTypes = def.ReportTypes
		default:
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s failed %s validation (%v), using default", field, fe.Tag(), fe.Value()))
	}
	return out, warnings, errs
}
