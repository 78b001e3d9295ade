package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aulalink/aulalink-api/internal/models"
)

type fakeAuditRecorder struct {
	logs []models.AuditLog
}

func (f *fakeAuditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func auditRouter(recorder *fakeAuditRecorder, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PUT("/users/:id", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: 3, Role: models.RoleAdmin})
		c.Next()
	}, Audit(recorder, "UPDATE", "user"), func(c *gin.Context) {
		c.Status(status)
	})
	return router
}

func TestAuditRecordsActorAndResourceID(t *testing.T) {
	recorder := &fakeAuditRecorder{}
	router := auditRouter(recorder, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/7", nil))

	if len(recorder.logs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(recorder.logs))
	}
	row := recorder.logs[0]
	if row.Action != "UPDATE" || row.Resource != "user" {
		t.Fatalf("unexpected action/resource: %s %s", row.Action, row.Resource)
	}
	if row.UserID == nil || *row.UserID != 3 {
		t.Fatalf("unexpected user id: %v", row.UserID)
	}
	if row.ResourceID == nil || *row.ResourceID != 7 {
		t.Fatalf("unexpected resource id: %v", row.ResourceID)
	}
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	recorder := &fakeAuditRecorder{}
	router := auditRouter(recorder, http.StatusUnprocessableEntity)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/7", nil))

	if len(recorder.logs) != 0 {
		t.Fatalf("expected no audit rows, got %d", len(recorder.logs))
	}
}
