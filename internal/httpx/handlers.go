package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/sellanything/internal/geo"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Repo        *store.Repository
	Auth        *Auth
	MapsEnabled bool
	Log         logrus.FieldLogger
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/config", h.getConfig)
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Sessions(h.Repo))

		r.Get("/me", h.me)
		r.Put("/me", h.updateMe)
		r.Put("/me/roles", h.setRoles)
		r.Get("/users/{id}", h.getUser)
		r.Get("/users/{id}/products", h.sellerProducts)

		r.Get("/categories", h.categories)
		r.Get("/products", h.browse)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}", h.getProduct)
		r.Patch("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/products/{id}/buy", h.buyNow)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addToCart)
		r.Delete("/cart/items/{productId}", h.removeFromCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/checkout", h.checkout)

		r.Get("/orders", h.buyerOrders)
		r.Get("/seller/orders", h.sellerOrders)
		r.Patch("/orders/{id}/status", h.updateOrderStatus)

		r.Post("/messages", h.sendMessage)
		r.Get("/messages/threads", h.threads)
		r.Get("/messages/with/{userId}", h.conversation)
		r.Patch("/messages/{id}", h.editMessage)
		r.Delete("/messages/{id}", h.deleteMessage)
	})
}

// fail maps repository errors to responses. Store failures are reported
// without detail; the repository has already logged them.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrMessageDeleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrEmptyMessage),
		errors.Is(err, store.ErrEmailRequired),
		errors.Is(err, store.ErrNoRecipient),
		errors.Is(err, store.ErrInvalidPrice),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrNotLive),
		errors.Is(err, store.ErrEmptyCart),
		errors.Is(err, store.ErrOwnProduct):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"mapsEnabled": h.MapsEnabled})
}

type loginReq struct {
	Email string `json:"email"`
}

type loginResp struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decode(w, r, &req) {
		return
	}
	user, err := h.Repo.Login(r.Context(), req.Email)
	if err != nil {
		h.fail(w, err)
		return
	}
	token, err := h.Auth.Issue(user.ID)
	if err != nil {
		h.Log.WithError(err).Error("issue token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResp{Token: token, User: user})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		h.fail(w, store.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, sess.User())
}

type updateMeReq struct {
	Name          string `json:"name"`
	ProfilePicURL string `json:"profilePicUrl"`
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		h.fail(w, store.ErrUnauthenticated)
		return
	}
	var req updateMeReq
	if !decode(w, r, &req) {
		return
	}

	user := sess.User()
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.ProfilePicURL != "" {
		user.ProfilePicURL = req.ProfilePicURL
	}
	updated, err := h.Repo.UpdateUser(r.Context(), sess, user)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type rolesReq struct {
	Roles models.RoleSet `json:"roles"`
}

func (h *Handler) setRoles(w http.ResponseWriter, r *http.Request) {
	var req rolesReq
	if !decode(w, r, &req) {
		return
	}
	user, err := h.Repo.SetRoles(r.Context(), sessionFrom(r.Context()), req.Roles)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Repo.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// sellerProducts shows drafts only to the seller themselves.
func (h *Handler) sellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "id")
	products, err := h.Repo.ListProductsBySeller(r.Context(), sellerID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !sessionFrom(r.Context()).IsUser(sellerID) {
		live := products[:0]
		for _, p := range products {
			if p.IsLive() {
				live = append(live, p)
			}
		}
		products = live
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	live, err := h.Repo.ListLiveProducts(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Categories(live))
}

// browse reads q, category, price, lat, lng and maxKm from the query.
func (h *Handler) browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	price, err := store.ParsePriceRange(q.Get("price"))
	if err != nil {
		h.fail(w, err)
		return
	}
	f := store.ProductFilter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Price:    price,
	}

	if q.Get("lat") != "" || q.Get("lng") != "" {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		p := geo.Point{Lat: lat, Lng: lng}
		if errLat != nil || errLng != nil || !p.Valid() {
			writeError(w, http.StatusBadRequest, "invalid location")
			return
		}
		f.Buyer = &p
	}
	if v := q.Get("maxKm"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil || km < 0 {
			writeError(w, http.StatusBadRequest, "invalid maxKm")
			return
		}
		f.MaxDistanceKm = km
	}

	results, err := h.Repo.BrowseProducts(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in store.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.Repo.CreateProduct(r.Context(), sessionFrom(r.Context()), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch store.ProductPatch
	if !decode(w, r, &patch) {
		return
	}
	p, err := h.Repo.UpdateProduct(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteProduct(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartResp struct {
	Cart  *models.Cart     `json:"cart"`
	Items []models.Product `json:"items"`
	Total decimal.Decimal  `json:"total"`
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	cart, err := h.Repo.GetCart(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	items, total, err := h.Repo.CartItems(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: cart, Items: items, Total: total})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r)
}

type addToCartReq struct {
	ProductID string `json:"productId"`
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.Repo.AddToCart(r.Context(), sessionFrom(r.Context()), req.ProductID); err != nil {
		h.fail(w, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Repo.RemoveFromCart(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "productId")); err != nil {
		h.fail(w, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Repo.ClearCart(r.Context(), sessionFrom(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	h.writeCart(w, r)
}

type orderResp struct {
	*models.Order
	Total   decimal.Decimal `json:"total"`
	Warning string          `json:"warning,omitempty"`
}

// writeOrder answers 201 for a created order, flagging a cart that could
// not be cleared instead of failing the request.
func (h *Handler) writeOrder(w http.ResponseWriter, order *models.Order, err error) {
	if err != nil && !(order != nil && errors.Is(err, store.ErrCartNotCleared)) {
		h.fail(w, err)
		return
	}
	resp := orderResp{Order: order, Total: order.Total()}
	if err != nil {
		resp.Warning = store.ErrCartNotCleared.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.Repo.Checkout(r.Context(), sessionFrom(r.Context()))
	h.writeOrder(w, order, err)
}

func (h *Handler) buyNow(w http.ResponseWriter, r *http.Request) {
	order, err := h.Repo.BuyNow(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"))
	h.writeOrder(w, order, err)
}

func (h *Handler) buyerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Repo.ListOrdersByBuyer(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) sellerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Repo.ListOrdersBySeller(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type statusReq struct {
	Status models.OrderStatus `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decode(w, r, &req) {
		return
	}
	order, err := h.Repo.UpdateOrderStatus(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in store.MessageInput
	if !decode(w, r, &in) {
		return
	}
	msg, err := h.Repo.SendMessage(r.Context(), sessionFrom(r.Context()), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) threads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.Repo.Threads(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Repo.GetConversation(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type editReq struct {
	Text string `json:"text"`
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	var req editReq
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.Repo.EditMessage(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteMessage(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
