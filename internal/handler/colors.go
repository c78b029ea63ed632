package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pixelhue/pixel-mosaic/internal/grid"
	"github.com/pixelhue/pixel-mosaic/internal/model"
)

// ClaimView is a claim as exposed by the public read projection.  The
// owner fingerprint and both payment identifiers are withheld: the
// fingerprint is never displayed and the transaction id doubles as the
// ownership credential.
type ClaimView struct {
	CellID           string  `json:"cell_id"`
	Color            string  `json:"color"`
	Status           string  `json:"status"` // "pending" or "completed"
	ReservedUntil    *string `json:"reserved_until,omitempty"`
	ClaimedAt        *string `json:"claimed_at,omitempty"`
	CustomColorName  *string `json:"custom_color_name,omitempty"`
	OwnerDisplayName *string `json:"owner_display_name,omitempty"`
	Blurb            *string `json:"blurb,omitempty"`
}

// GridStats summarizes the state of the mosaic.  Everything here is
// derived from the claim rows on each read, never stored.
type GridStats struct {
	TotalCells int         `json:"total_cells"`
	Completed  int         `json:"completed"`
	Pending    int         `json:"pending"`
	Recent     []ClaimView `json:"recent"`
}

// recentLimit is how many of the most recently completed claims the stats
// block carries.
const recentLimit = 5

// ColorsHandler serves the aggregate grid view.
type ColorsHandler struct {
	Store ClaimStore
}

// NewColorsHandler constructs a ColorsHandler.  Store must be non-nil.
func NewColorsHandler(store ClaimStore) *ColorsHandler {
	if store == nil {
		panic("nil store passed to NewColorsHandler")
	}
	return &ColorsHandler{Store: store}
}

// ListClaims handles GET /colors.  Cleanup runs first, so a reservation
// that expired since the last read silently disappears from the response
// and from the store in the same request.  Pending rows are included so
// the client can render "reserved, not yet claimed" cells.
func (h *ColorsHandler) ListClaims(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Store.DeleteExpired(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	claims, err := h.Store.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := time.Now().UTC()
	views := make([]ClaimView, 0, len(claims))
	completed := make([]model.Claim, 0, len(claims))
	pending := 0
	for i := range claims {
		cl := claims[i]
		// A row that expired between the delete and the select is
		// logically free already; skip it rather than show a dead
		// reservation.
		if cl.ExpiredAt(now) {
			continue
		}
		views = append(views, viewFromClaim(&cl))
		if cl.Completed() {
			completed = append(completed, cl)
		} else {
			pending++
		}
	}

	sort.Slice(completed, func(i, j int) bool {
		ti, tj := completed[i].ClaimedAt, completed[j].ClaimedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.After(*tj)
		default:
			return completed[i].CellID < completed[j].CellID
		}
	})
	recent := make([]ClaimView, 0, recentLimit)
	for i := 0; i < len(completed) && i < recentLimit; i++ {
		recent = append(recent, viewFromClaim(&completed[i]))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"claims": views,
		"stats": GridStats{
			TotalCells: grid.Size,
			Completed:  len(completed),
			Pending:    pending,
			Recent:     recent,
		},
	})
}

// viewFromClaim converts a claim row into its public projection.
func viewFromClaim(cl *model.Claim) ClaimView {
	v := ClaimView{
		CellID:           cl.CellID,
		Color:            cl.ColorValue,
		Status:           "pending",
		CustomColorName:  cl.CustomColorName,
		OwnerDisplayName: cl.OwnerDisplayName,
		Blurb:            cl.Blurb,
	}
	if cl.Completed() {
		v.Status = "completed"
	}
	if cl.ReservedUntil != nil {
		s := cl.ReservedUntil.UTC().Format(time.RFC3339)
		v.ReservedUntil = &s
	}
	if cl.ClaimedAt != nil {
		s := cl.ClaimedAt.UTC().Format(time.RFC3339)
		v.ClaimedAt = &s
	}
	return v
}
