package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gamekey-market-api/internal/market"
	"gamekey-market-api/internal/middleware"
	"gamekey-market-api/internal/service"
	"gamekey-market-api/pkg/apierror"
	"gamekey-market-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// MarketHandler handles marketplace HTTP requests.
type MarketHandler struct {
	marketService *service.MarketService
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(marketService *service.MarketService) *MarketHandler {
	return &MarketHandler{
		marketService: marketService,
	}
}

// marketError maps engine failures onto API errors so callers get a
// distinguishable code per failure kind.
func marketError(err error) error {
	switch {
	case errors.Is(err, market.ErrInvalidPrice):
		return apierror.ValidationError("price must be positive").WithCode("INVALID_PRICE")
	case errors.Is(err, market.ErrNoListingFound):
		return apierror.NotFound("no listing found for this game and price").WithCode("NO_LISTING_FOUND")
	case errors.Is(err, market.ErrIncorrectPayment):
		return apierror.PaymentRequired("payment must equal the listing price").WithCode("INCORRECT_PAYMENT")
	case errors.Is(err, market.ErrNoFundsAvailable):
		return apierror.Conflict("no funds available").WithCode("NO_FUNDS_AVAILABLE")
	case errors.Is(err, market.ErrSellerMismatch):
		return apierror.Conflict("listing seller does not match").WithCode("SELLER_MISMATCH")
	case errors.Is(err, market.ErrPayoutFailed):
		return apierror.BadGateway("payout failed, balance restored").WithCode("PAYOUT_FAILED")
	default:
		return err
	}
}

// ListingRequest represents the request body for creating a listing.
type ListingRequest struct {
	GameKey string `json:"game_key"`
	GameID  int64  `json:"game_id"`
	Price   int64  `json:"price"`
}

// CreateListing handles POST /api/v1/listings
func (h *MarketHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	seller := middleware.GetAccountFromContext(r.Context())
	if seller == "" {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.GameKey == "" {
		response.Error(w, apierror.BadRequest("game_key is required"))
		return
	}

	if err := h.marketService.ListGameKey(r.Context(), seller, req.GameKey, req.GameID, req.Price); err != nil {
		response.Error(w, marketError(err))
		return
	}

	response.Created(w, map[string]interface{}{
		"status":  "listed",
		"game_id": req.GameID,
		"price":   req.Price,
	})
}

// UpdateListingRequest represents the request body for a price update.
type UpdateListingRequest struct {
	OldPrice int64 `json:"old_price"`
	NewPrice int64 `json:"new_price"`
}

// UpdateListing handles PUT /api/v1/listings/{game_id}
func (h *MarketHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "game_id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid game_id"))
		return
	}

	var req UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if err := h.marketService.UpdateListing(r.Context(), gameID, req.OldPrice, req.NewPrice); err != nil {
		response.Error(w, marketError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":    "updated",
		"game_id":   gameID,
		"old_price": req.OldPrice,
		"new_price": req.NewPrice,
	})
}

// CancelListing handles DELETE /api/v1/listings/{game_id}?price=N
func (h *MarketHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "game_id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid game_id"))
		return
	}

	price, err := strconv.ParseInt(r.URL.Query().Get("price"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("price query parameter is required"))
		return
	}

	if err := h.marketService.CancelListing(r.Context(), gameID, price); err != nil {
		response.Error(w, marketError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":  "cancelled",
		"game_id": gameID,
		"price":   price,
	})
}

// GetListings handles GET /api/v1/listings?game_id=N. Filtering is by
// presence of the parameter, so game ID 0 is filterable like any other.
func (h *MarketHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("game_id")
	if raw == "" {
		response.OK(w, h.marketService.AllListings())
		return
	}

	gameID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid game_id"))
		return
	}
	response.OK(w, h.marketService.Listings(gameID))
}

// PurchaseRequest represents the request body for buying a key. Payment
// is the attached value and must equal price exactly.
type PurchaseRequest struct {
	GameID  int64  `json:"game_id"`
	Seller  string `json:"seller"`
	Price   int64  `json:"price"`
	Payment int64  `json:"payment"`
}

// CreatePurchase handles POST /api/v1/purchases
func (h *MarketHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	buyer := middleware.GetAccountFromContext(r.Context())
	if buyer == "" {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	purchase, err := h.marketService.BuyGameKey(r.Context(), buyer, req.Seller, req.GameID, req.Price, req.Payment)
	if err != nil {
		response.Error(w, marketError(err))
		return
	}

	response.Created(w, purchase)
}

// GetPurchases handles GET /api/v1/purchases
func (h *MarketHandler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	buyer := middleware.GetAccountFromContext(r.Context())
	if buyer == "" {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	response.OK(w, h.marketService.GamesBought(buyer))
}

// GetBalance handles GET /api/v1/balance
func (h *MarketHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == "" {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	response.OK(w, map[string]interface{}{
		"account": account,
		"balance": h.marketService.Balance(account),
	})
}

// CreateWithdrawal handles POST /api/v1/withdrawals
func (h *MarketHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == "" {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	amount, err := h.marketService.Withdraw(r.Context(), account)
	if err != nil {
		response.Error(w, marketError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":  "withdrawn",
		"account": account,
		"amount":  amount,
	})
}
