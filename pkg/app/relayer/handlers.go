package relayer

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/crosslane/swapbridge/pkg/app/errors"
	"github.com/crosslane/swapbridge/pkg/resolver"
	"github.com/crosslane/swapbridge/pkg/swap"
)

// orderResponse is the JSON view of an order. Big integers render as
// decimal strings, hashes and commitments as 0x-prefixed hex.
type orderResponse struct {
	ID                  string  `json:"id"`
	Sender              string  `json:"sender"`
	RecipientCommitment string  `json:"recipient_commitment"`
	Amount              string  `json:"amount"`
	GrossAmount         string  `json:"gross_amount"`
	Hashlock            string  `json:"hashlock"`
	Timelock            int64   `json:"timelock"`
	Status              string  `json:"status"`
	FeeBasisPoints      uint32  `json:"fee_basis_points"`
	CreationBlock       uint64  `json:"creation_block"`
	CreatedAt           string  `json:"created_at"`
	ResolvedAt          *string `json:"resolved_at,omitempty"`
	Resolver            *string `json:"resolver,omitempty"`
	Preimage            *string `json:"preimage,omitempty"`
}

func toOrderResponse(order *swap.Order) orderResponse {
	resp := orderResponse{
		ID:                  order.ID,
		Sender:              order.Sender.Hex(),
		RecipientCommitment: hexutil.Encode(order.RecipientCommitment),
		Amount:              order.Amount.String(),
		GrossAmount:         order.GrossAmount.String(),
		Hashlock:            order.Hashlock.Hex(),
		Timelock:            order.Timelock.Unix(),
		Status:              string(order.Status),
		FeeBasisPoints:      order.FeeBasisPoints,
		CreationBlock:       order.CreationBlock,
		CreatedAt:           order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.ResolvedAt != nil {
		resolvedAt := order.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &resolvedAt
	}
	if order.Resolver != nil {
		addr := order.Resolver.Hex()
		resp.Resolver = &addr
	}
	if len(order.Preimage) > 0 {
		preimage := hexutil.Encode(order.Preimage)
		resp.Preimage = &preimage
	}
	return resp
}

func handleListOrders(store Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := store.ListOrders(r.Context(), defaultLimitForListOrders)
		if err != nil {
			writeError(w, logger, apperrors.GeneralError(err))
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for _, order := range orders {
			resp = append(resp, toOrderResponse(order))
		}
		writeJSON(w, logger, http.StatusOK, map[string]any{"orders": resp})
	}
}

func handleGetOrder(svc *resolver.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		order, err := svc.GetOrder(r.Context(), id)
		if err != nil {
			writeError(w, logger, mapSwapError(err))
			return
		}
		writeJSON(w, logger, http.StatusOK, toOrderResponse(order))
	}
}

func handleGetOrderReady(svc *resolver.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ready, err := svc.IsOrderReady(r.Context(), id)
		if err != nil {
			writeError(w, logger, mapSwapError(err))
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]any{"id": id, "ready": ready})
	}
}

func handleGetStats(svc *resolver.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.GetStats(r.Context())
		if err != nil {
			writeError(w, logger, apperrors.GeneralError(err))
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]any{
			"total":     stats.Total,
			"completed": stats.Completed,
			"cancelled": stats.Cancelled,
			"pending":   stats.Pending,
		})
	}
}

// mapSwapError translates domain sentinel errors into service errors
// carrying the right HTTP status.
func mapSwapError(err error) error {
	switch {
	case errors.Is(err, swap.ErrOrderNotFound):
		return apperrors.ResourceNotFoundError(err, "order not found")
	case errors.Is(err, swap.ErrNotAuthorized):
		return apperrors.ForbiddenError(err, "not authorized")
	case errors.Is(err, swap.ErrAlreadyResolved),
		errors.Is(err, swap.ErrStateConflict),
		errors.Is(err, swap.ErrHashlockUsed):
		return apperrors.ConflictError(err, err.Error())
	case errors.Is(err, swap.ErrTimelockNotExpired):
		return apperrors.LockedError(err, err.Error())
	case errors.Is(err, swap.ErrAmountOutOfRange),
		errors.Is(err, swap.ErrTimelockOutOfRange),
		errors.Is(err, swap.ErrTimelockExpired),
		errors.Is(err, swap.ErrInvalidPreimage),
		errors.Is(err, swap.ErrInsufficientBalance):
		return apperrors.BadRequestError(err, err.Error())
	default:
		return apperrors.GeneralError(err)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = &apperrors.ServiceError{
			Category: apperrors.CategoryGeneralError,
			Message:  "Internal Server Error",
			Err:      err,
		}
	}
	if apperrors.IsInternalError(svcErr) {
		logger.Error("Request failed", zap.Error(svcErr.Err))
	}
	writeJSON(w, logger, svcErr.StatusCode(), map[string]string{"error": svcErr.Message})
}
