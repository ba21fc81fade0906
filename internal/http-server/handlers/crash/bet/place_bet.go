package bet

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"go-crash/internal/http-server/model"
	resp "go-crash/internal/lib/api/response"
	"go-crash/internal/lib/converter"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
)

type PlaceRequest struct {
	RoundUUID   string  `json:"round_uuid" validate:"required,uuid4"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	IsInventory bool    `json:"is_inventory"`
}

type PlaceResponse struct {
	resp.Response
	BetUUID string `json:"bet_uuid,omitempty"`
}

type Place struct {
	log       *slog.Logger
	validator *validator.Validate
	userRep   repository.UserRepository
	ledger    *Ledger
}

func NewPlace(log *slog.Logger, userRep repository.UserRepository, ledger *Ledger) *Place {
	return &Place{
		log:       log,
		validator: validator.New(),
		userRep:   userRep,
		ledger:    ledger,
	}
}

func (p *Place) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.crash.bet.place.New"

		log := p.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PlaceRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := p.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		user := p.authedUser(w, r, log)
		if user == nil {
			return
		}

		bet, err := p.ledger.PlaceBet(
			user,
			req.RoundUUID,
			converter.AmountToCents(req.Amount),
			req.IsInventory,
			time.Now())
		if err != nil {
			log.Error("failed to place bet", sl.Err(err))

			render.JSON(w, r, resp.FromError(err))

			return
		}

		render.JSON(w, r, PlaceResponse{
			Response: resp.OK(),
			BetUUID:  bet.UUID.String(),
		})
	}
}

// authedUser resolves the upstream-validated user header. Authentication
// itself lives outside this service; the header is trusted to be vetted.
func (p *Place) authedUser(w http.ResponseWriter, r *http.Request, log *slog.Logger) *model.User {
	userUUID := r.Header.Get("X-User-Uuid")
	if userUUID == "" {
		render.JSON(w, r, resp.Error("missing user", http.StatusUnauthorized))

		return nil
	}

	user, err := p.userRep.FindUserByUUID(userUUID)
	if err != nil {
		log.Error("failed to find user", sl.Err(err))

		render.JSON(w, r, resp.Error("failed to find user", http.StatusInternalServerError))

		return nil
	}

	if user == nil {
		render.JSON(w, r, resp.Error("user not found", http.StatusNotFound))

		return nil
	}

	return user
}
