package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/pixelhue/pixel-mosaic/internal/grid"
	"github.com/pixelhue/pixel-mosaic/internal/repository"
)

const (
	// maxBlurbRunes is the blurb limit in code points, not bytes.
	maxBlurbRunes = 280
	// maxNameLen caps the color name and display name columns.
	maxNameLen = 100
)

// PersonalizeHandler lets a claimant decorate their completed claim.
// There are no accounts: presenting the exact checkout transaction id that
// the original browser session received is the entire authorization model.
// Calls are repeatable and simply overwrite: last write wins.
type PersonalizeHandler struct {
	Store ClaimStore
}

// NewPersonalizeHandler constructs a PersonalizeHandler.  Store must be
// non-nil.
func NewPersonalizeHandler(store ClaimStore) *PersonalizeHandler {
	if store == nil {
		panic("nil store passed to NewPersonalizeHandler")
	}
	return &PersonalizeHandler{Store: store}
}

// Personalize handles POST /personalize.  A missing row and a wrong
// transaction id are both 404 because the response must not reveal
// whether the cell is claimed.  A matching but still-pending claim is 409.
func (h *PersonalizeHandler) Personalize(c echo.Context) error {
	var body struct {
		CellID        string `json:"cell_id"`
		TransactionID string `json:"transaction_id"`
		Name          string `json:"name"`
		DisplayName   string `json:"display_name"`
		Blurb         string `json:"blurb"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	cell := grid.Resolve(body.CellID)
	if cell == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cell id"})
	}
	transactionID := strings.TrimSpace(body.TransactionID)
	if transactionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_id is required"})
	}
	name := strings.TrimSpace(body.Name)
	displayName := strings.TrimSpace(body.DisplayName)
	blurb := strings.TrimSpace(body.Blurb)
	if len(name) > maxNameLen || len(displayName) > maxNameLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name too long"})
	}
	if utf8.RuneCountInString(blurb) > maxBlurbRunes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "blurb exceeds 280 characters"})
	}

	claim, err := h.Store.SetPersonalization(c.Request().Context(), cell.ShortID, transactionID, name, displayName, blurb)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "claim not found"})
		case errors.Is(err, repository.ErrPaymentNotConfirmed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment not confirmed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"claim": viewFromClaim(claim)})
}
