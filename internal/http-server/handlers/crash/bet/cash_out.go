package bet

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	resp "go-crash/internal/lib/api/response"
	"go-crash/internal/lib/converter"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
)

type CashOutRequest struct {
	ClaimedMultiplier float64 `json:"claimed_multiplier" validate:"required,gte=1"`
}

type CashOutResponse struct {
	resp.Response
	Multiplier float64 `json:"multiplier,omitempty"`
	Payout     string  `json:"payout,omitempty"`
}

type CashOut struct {
	log       *slog.Logger
	validator *validator.Validate
	userRep   repository.UserRepository
	ledger    *Ledger
}

func NewCashOut(log *slog.Logger, userRep repository.UserRepository, ledger *Ledger) *CashOut {
	return &CashOut{
		log:       log,
		validator: validator.New(),
		userRep:   userRep,
		ledger:    ledger,
	}
}

func (c *CashOut) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.bet.cashout.New"

		log := c.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CashOutRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := c.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		userUUID := r.Header.Get("X-User-Uuid")
		if userUUID == "" {
			render.JSON(w, r, resp.Error("missing user", http.StatusUnauthorized))

			return
		}

		user, err := c.userRep.FindUserByUUID(userUUID)
		if err != nil {
			log.Error("failed to find user", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to find user", http.StatusInternalServerError))

			return
		}

		if user == nil {
			render.JSON(w, r, resp.Error("user not found", http.StatusNotFound))

			return
		}

		betUUID := chi.URLParam(r, "uuid")

		result, err := c.ledger.CashOut(user, betUUID, req.ClaimedMultiplier, time.Now())
		if err != nil {
			log.Error("failed to cash out", sl.Err(err))

			render.JSON(w, r, resp.FromError(err))

			return
		}

		render.JSON(w, r, CashOutResponse{
			Response:   resp.OK(),
			Multiplier: result.Multiplier,
			Payout:     converter.CentsToString(result.Payout),
		})
	}
}
