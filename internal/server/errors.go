package server

import (
	"net/http"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	apperrors "github.com/Ravio1i/azure-devops-server-mcp/internal/errors"
)

// HandleError writes err as an error envelope. Guard failures are mapped by
// kind and carry their operation in the envelope context.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if guard.KindOf(err) != "" {
		err = apperrors.FromGuardFailure(r.Context(), err)
	}
	apperrors.RespondWithError(w, r, err)
}
