package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pixelhue/pixel-mosaic/internal/grid"
	"github.com/pixelhue/pixel-mosaic/internal/repository"
)

type colorsResponse struct {
	Claims []ClaimView `json:"claims"`
	Stats  GridStats   `json:"stats"`
}

func getColors(t *testing.T, h *ColorsHandler) (*http.Response, colorsResponse) {
	t.Helper()
	rec := doJSON(t, h.ListClaims, http.MethodGet, "/colors", "")
	var resp colorsResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Result(), resp
}

func TestListClaimsEmptyGrid(t *testing.T) {
	h := NewColorsHandler(newMemStore())
	res, resp := getColors(t, h)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, resp.Claims)
	assert.Equal(t, grid.Size, resp.Stats.TotalCells)
	assert.Zero(t, resp.Stats.Completed)
	assert.Zero(t, resp.Stats.Pending)
	assert.Empty(t, resp.Stats.Recent)
}

func TestListClaimsShowsPendingAndCompleted(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(10*time.Minute))
	store.seedCompleted("0c3", "#00cc33", "fp-2", "cs_2", "pay_2", time.Now().UTC())
	h := NewColorsHandler(store)

	_, resp := getColors(t, h)

	assert.Len(t, resp.Claims, 2)
	byCell := map[string]ClaimView{}
	for _, v := range resp.Claims {
		byCell[v.CellID] = v
	}
	if pending, ok := byCell["a1f"]; assert.True(t, ok) {
		assert.Equal(t, "pending", pending.Status)
		assert.NotNil(t, pending.ReservedUntil)
		assert.Nil(t, pending.ClaimedAt)
	}
	if completed, ok := byCell["0c3"]; assert.True(t, ok) {
		assert.Equal(t, "completed", completed.Status)
		assert.NotNil(t, completed.ClaimedAt)
		assert.Nil(t, completed.ReservedUntil)
	}
	assert.Equal(t, 1, resp.Stats.Completed)
	assert.Equal(t, 1, resp.Stats.Pending)
}

// Reading the grid removes expired reservations as a side effect: the cell
// disappears from the response and from the store in the same request.
func TestListClaimsCleanupRemovesExpired(t *testing.T) {
	store := newMemStore()
	store.seedPending("a1f", "#aa11ff", "fp-1", "cs_1", time.Now().UTC().Add(-time.Minute))
	h := NewColorsHandler(store)

	_, resp := getColors(t, h)

	for _, v := range resp.Claims {
		assert.NotEqual(t, "a1f", v.CellID)
	}
	_, err := store.GetByCell(context.Background(), "a1f")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListClaimsHidesCredentials(t *testing.T) {
	store := newMemStore()
	store.seedCompleted("0c3", "#00cc33", "fp-secret", "cs_secret", "pay_secret", time.Now().UTC())
	h := NewColorsHandler(store)

	rec := doJSON(t, h.ListClaims, http.MethodGet, "/colors", "")
	body := rec.Body.String()

	assert.NotContains(t, body, "fp-secret")
	assert.NotContains(t, body, "cs_secret")
	assert.NotContains(t, body, "pay_secret")
}

func TestListClaimsRecentFiveOrdering(t *testing.T) {
	store := newMemStore()
	base := time.Now().UTC().Add(-time.Hour)
	// Seven completed claims, oldest first.
	for i := 0; i < 7; i++ {
		cell := fmt.Sprintf("%03x", i)
		store.seedCompleted(cell, "#000000", "fp", "cs_"+cell, "pay_"+cell, base.Add(time.Duration(i)*time.Minute))
	}
	h := NewColorsHandler(store)

	_, resp := getColors(t, h)

	assert.Equal(t, 7, resp.Stats.Completed)
	if assert.Len(t, resp.Stats.Recent, 5) {
		// Newest first: cells 006 down to 002.
		var got []string
		for _, v := range resp.Stats.Recent {
			got = append(got, v.CellID)
		}
		assert.Equal(t, []string{"006", "005", "004", "003", "002"}, got)
	}
}

func TestListClaimsPersonalizationVisible(t *testing.T) {
	store := newMemStore()
	store.seedCompleted("a1f", "#aa11ff", "fp-1", "cs_1", "pay_1", time.Now().UTC())
	_, err := store.SetPersonalization(context.Background(), "a1f", "cs_1", "Midnight", "ada", "first!")
	assert.NoError(t, err)
	h := NewColorsHandler(store)

	_, resp := getColors(t, h)

	if assert.Len(t, resp.Claims, 1) {
		v := resp.Claims[0]
		if assert.NotNil(t, v.CustomColorName) {
			assert.Equal(t, "Midnight", *v.CustomColorName)
		}
		if assert.NotNil(t, v.OwnerDisplayName) {
			assert.Equal(t, "ada", *v.OwnerDisplayName)
		}
	}
}
