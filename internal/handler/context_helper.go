package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster/internal/middleware"
	"github.com/noah-isme/sma-roster/internal/models"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
)

// sourceMeta tags the request with its data source for logging and returns response metadata.
func sourceMeta(c *gin.Context, source models.DataSource) map[string]interface{} {
	middleware.SetDataSource(c, source)
	return middleware.ExtractMeta(c)
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Validation("identificador inválido", map[string]string{name: "deve ser um inteiro positivo"})
	}
	return id, nil
}

func filterFromQuery(c *gin.Context) (models.StudentFilter, error) {
	filter := models.StudentFilter{Name: strings.TrimSpace(c.Query("nome"))}
	if raw := strings.TrimSpace(c.Query("turma_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, appErrors.Validation("filtro inválido", map[string]string{"turma_id": "deve ser um inteiro positivo"})
		}
		filter.ClassID = &id
	}
	if raw := strings.ToLower(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.StudentStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Validation("filtro inválido", map[string]string{"status": "use ativo ou inativo"})
		}
		filter.Status = status
	}
	return filter, nil
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "corpo da requisição inválido")
}
