package httpapi

import (
	"net/http"
	"strings"

	"gridbase-engine/internal/domain"
)

// principalFromReq 从网关注入的头部还原已认证主体
// 认证本身在上游完成，这里只做完整性检查：三个头缺一个按未认证处理
func principalFromReq(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	roleRaw := strings.TrimSpace(r.Header.Get("X-Tenant-Role"))

	if userID == "" || userID == "null" || tenantID == "" || tenantID == "null" || roleRaw == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("unauthenticated"))
		return domain.Principal{}, false
	}

	role := domain.Role(strings.ToUpper(roleRaw))
	if !role.IsValid() {
		writeJSON(w, http.StatusBadRequest, Fail("invalid role: "+roleRaw))
		return domain.Principal{}, false
	}

	return domain.Principal{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
	}, true
}
