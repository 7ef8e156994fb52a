package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"storefront/pkg/domain/model"
	"storefront/pkg/domain/service"
	"storefront/pkg/domain/validation"
)

const (
	msgPlacementFailed = "Could not place order at this time. Please try later"
	msgInvalidOrder    = "Os dados da encomenda são inválidos."
	msgMalformedBody   = "O pedido não pôde ser lido."
	maxBodyBytes       = 64 << 10
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	orders         service.OrderService
	catalog        service.CatalogService
	db             Pinger
	requestTimeout time.Duration
}

func Router(orders service.OrderService, catalog service.CatalogService, db Pinger, requestTimeout time.Duration) http.Handler {
	h := &Handler{
		orders:         orders,
		catalog:        catalog,
		db:             db,
		requestTimeout: requestTimeout,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	s.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	s.HandleFunc("/products/{id}/price", h.quote).Methods(http.MethodGet)
	s.Use(h.timeoutMiddleware)

	return logMiddleware(r)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeOrder(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{Message: msgMalformedBody})
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), raw)
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{Message: msgInvalidOrder, Errors: verr.ByField()})
	case err != nil:
		log.WithError(err).Error("failed to place order")
		http.Error(w, msgPlacementFailed, http.StatusInternalServerError)
	default:
		log.WithFields(log.Fields{"order_id": order.ID, "buyer_id": order.BuyerID}).Info("order placed")
		writeJSON(w, http.StatusCreated, newOrderResponse(order))
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to list products")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	response := make([]productResponse, 0, len(products))
	for i := range products {
		response = append(response, newProductResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, model.ErrProductNotFound.Error(), http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	buyerType := model.Guest
	if value := query.Get("buyerType"); value != "" {
		if buyerType, err = model.ParseBuyerType(value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	personalized := false
	if value := query.Get("personalized"); value != "" {
		if personalized, err = strconv.ParseBool(value); err != nil {
			http.Error(w, "personalized must be a boolean", http.StatusBadRequest)
			return
		}
	}

	price, err := h.catalog.Quote(r.Context(), productID, buyerType, personalized)
	switch {
	case errors.Is(err, model.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrProductNotPersonalizable):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		log.WithError(err).WithField("product_id", productID).Error("failed to quote product")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, quoteResponse{UnitPrice: price.StringFixed(2)})
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		log.WithError(err).Warn("database ping failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeOrder accepts a JSON object or a classic form post.
func decodeOrder(w http.ResponseWriter, r *http.Request) (validation.RawOrder, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		raw := validation.RawOrder{}
		for key := range r.PostForm {
			raw[key] = r.PostForm.Get(key)
		}
		return raw, nil
	}

	var raw validation.RawOrder
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("empty order")
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(b); err != nil {
		log.WithField("err", err).Error("write response status")
	}
}

func (h *Handler) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.requestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
		}).Info("got a new request")
		h.ServeHTTP(w, r)
	})
}
