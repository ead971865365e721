package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type reportOutput struct {
	Status int
	Body   Report
}

func output(r Report) *reportOutput {
	status := http.StatusOK
	if !r.OK() {
		status = http.StatusServiceUnavailable
	}
	return &reportOutput{Status: status, Body: r}
}

// Register exposes GET /livez and GET /readyz on api. Both answer 200 when
// healthy and 503 with the failing checks otherwise.
func Register(api huma.API, h *Health) {
	huma.Register(api, huma.Operation{
		OperationID: "livez",
		Summary:     "Liveness probe",
		Method:      http.MethodGet,
		Path:        "/livez",
		Tags:        []string{"Health"},
	}, func(context.Context, *struct{}) (*reportOutput, error) {
		return output(h.Live()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "readyz",
		Summary:     "Readiness probe",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Tags:        []string{"Health"},
	}, func(context.Context, *struct{}) (*reportOutput, error) {
		return output(h.Ready()), nil
	})
}
