package httpapi

import (
	"errors"
	"net/http"

	"gridbase-engine/internal/domain"

	"go.uber.org/zap"
)

// writeEngineError 把领域错误映射到HTTP状态码
// 校验400、唯一冲突409、引用不可解析422、权限403、缺资源404；
// 其余按内部错误处理：细节只进日志，响应给统一文案。
func writeEngineError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var reference *domain.ReferenceError
	var permission *domain.PermissionError
	var notFound *domain.NotFoundError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, Fail(validation.Error()))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, Fail(conflict.Error()))
	case errors.As(err, &reference):
		writeJSON(w, http.StatusUnprocessableEntity, Fail(reference.Error()))
	case errors.As(err, &permission):
		writeJSON(w, http.StatusForbidden, Fail(permission.Error()))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, Fail(notFound.Error()))
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
