package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"palate/internal/domain"
	"palate/internal/usecase"
)

// bind decodes and validates a request body, writing the error response
// itself. It reports whether the handler should continue.
func bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(r, dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "malformed JSON body: "+err.Error(), nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "request validation failed", validationDetails(err))
		return false
	}
	return true
}

func (a *API) createDish(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if !bind(w, r, &req) {
		return
	}
	dish, err := a.svc.Catalog.AddDish(r.Context(), req.input())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, dish)
}

func (a *API) listDishes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := usecase.DishFilter{
		RestaurantID: q.Get("restaurant"),
		Category:     q.Get("category"),
		Axes:         splitAxes(q.Get("taste")),
		Threshold:    a.opts.FilterThreshold,
	}
	if s := q.Get("threshold"); s != "" {
		t, err := strconv.ParseFloat(s, 64)
		if err != nil || t < 0 || t > 1 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "threshold must be a number in [0,1]", nil)
			return
		}
		filter.Threshold = t
	}

	dishes, err := a.svc.Catalog.ListDishes(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	for i := range dishes {
		dishes[i].Embedding = nil
	}
	respond(w, http.StatusOK, dishes)
}

func (a *API) getDish(w http.ResponseWriter, r *http.Request) {
	dish, err := a.svc.Catalog.GetDish(r.Context(), chi.URLParam(r, "dishID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	dish.Embedding = nil
	respond(w, http.StatusOK, dish)
}

func (a *API) updateDish(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if !bind(w, r, &req) {
		return
	}
	dish, err := a.svc.Catalog.UpdateDish(r.Context(), chi.URLParam(r, "dishID"), req.input())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	dish.Embedding = nil
	respond(w, http.StatusOK, dish)
}

func (a *API) deleteDish(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Catalog.DeleteDish(r.Context(), chi.URLParam(r, "dishID")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) putUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !bind(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "userID")
	user, err := a.svc.Users.GetUser(r.Context(), id)
	if err != nil && !usecase.IsNotFound(err) {
		respondDomainError(w, r, err)
		return
	}
	user.ID = id
	user.Name = req.Name
	user.Email = req.Email

	user, err = a.svc.Users.CreateUser(r.Context(), user)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.Users.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user)
}

func (a *API) setTaste(w http.ResponseWriter, r *http.Request) {
	var req tasteRequest
	if !bind(w, r, &req) {
		return
	}
	scale := req.Scale
	if scale == 0 {
		scale = a.opts.TasteScale
	}
	user, err := a.svc.Users.SetTaste(r.Context(), chi.URLParam(r, "userID"), req.Taste, scale)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user)
}

func (a *API) rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !bind(w, r, &req) {
		return
	}
	event, err := a.svc.Ratings.RateDish(r.Context(), chi.URLParam(r, "userID"), req.DishID, *req.Liked)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, event)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	events, err := a.svc.Ratings.History(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.RatingEvent{}
	}
	respond(w, http.StatusOK, events)
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile, ok, err := a.svc.Users.Profile(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "no profile embedding for user "+userID, nil)
		return
	}
	respond(w, http.StatusOK, profile)
}

func (a *API) recommend(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	recs, err := a.svc.Recommender.Recommend(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	for i := range recs {
		recs[i].Dish.Embedding = nil
	}
	respond(w, http.StatusOK, recs)
}

func (a *API) tasteMatch(w http.ResponseWriter, r *http.Request) {
	match, err := a.svc.Matcher.Match(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "dishID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, match)
}
