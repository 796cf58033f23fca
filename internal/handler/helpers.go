package handler

import (
	"net/http"

	"insightboard/internal/domain/models"
	"insightboard/internal/domain/services"
	"insightboard/internal/httputil"
)

// identity returns the caller resolved by the identity middleware. A request
// that bypassed the middleware gets a 500 and ok=false.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := httputil.GetIdentity(r)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "identity not resolved")
		return models.Identity{}, false
	}
	return id, true
}

// container reads the {ws} and {db} path segments.
func container(r *http.Request) services.Container {
	return services.Container{
		WorkspaceID: r.PathValue("ws"),
		DashboardID: r.PathValue("db"),
	}
}

// decode parses a JSON body, answering 400 on malformed or missing input.
func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	return respondParse(w, httputil.ParseJSON(w, r, dest))
}

// decodeOptional is decode for bodies the caller may leave out.
func decodeOptional(w http.ResponseWriter, r *http.Request, dest any) bool {
	return respondParse(w, httputil.ParseOptionalJSON(w, r, dest))
}

func respondParse(w http.ResponseWriter, err error) bool {
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
