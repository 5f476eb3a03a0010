package health

import (
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/testutil"
)

func TestServe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db.Client(), zap.NewNop())

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.Status != "ok" || resp.Database != "connected" {
		t.Errorf("unexpected health body: %+v", resp)
	}
}
