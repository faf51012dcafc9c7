package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mwangikev/transitgo-backend/internal/domain"
)

func respond(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)
	return w
}

func TestRespondError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.NotFound("booking"), 404},
		{"conflict", domain.Conflict("trip already ongoing"), 409},
		{"expired", domain.Expired("reservation hold"), 410},
		{"unknown", errors.New("disk on fire"), 500},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if w := respond(t, c.err); w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestRespondError_SeatConflictDetail(t *testing.T) {
	w := respond(t, &domain.SeatConflictError{TripID: 5, Seats: []string{"3", "7"}})

	if w.Code != 409 {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error string   `json:"error"`
		Seats []string `json:"seats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error != "seats unavailable" {
		t.Errorf("error = %q", body.Error)
	}
	if len(body.Seats) != 2 || body.Seats[0] != "3" || body.Seats[1] != "7" {
		t.Errorf("seats = %v", body.Seats)
	}
}

func TestRespondError_InternalDetailHidden(t *testing.T) {
	w := respond(t, errors.New("pq: connection reset"))
	if got := w.Body.String(); got != `{"error":"Internal server error"}` {
		t.Errorf("internal errors must not leak detail, got %s", got)
	}
}
