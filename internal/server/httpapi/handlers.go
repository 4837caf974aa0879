// Package httpapi wires the relay's REST surface: OTP login, prekey bundle
// endpoints, and chat management, plus the WebSocket upgrade route.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"sealchat/internal/domain"
	"sealchat/internal/server/auth"
	"sealchat/internal/server/keys"
	"sealchat/internal/server/storage"
)

// API holds the handlers behind the relay's routes.
type API struct {
	store *storage.Store
	keys  *keys.Service
	otp   *auth.OTP
	log   zerolog.Logger
}

func NewAPI(store *storage.Store, keySvc *keys.Service, otp *auth.OTP, log zerolog.Logger) *API {
	return &API{store: store, keys: keySvc, otp: otp, log: log.With().Str("component", "http").Logger()}
}

// Router assembles the full route table. Auth endpoints are public; key and
// chat endpoints sit behind the JWT middleware; wsHandler serves the upgrade.
func (a *API) Router(issuer *auth.Issuer, wsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/auth/otp/request", a.requestOTP).Methods(http.MethodPost)
	r.HandleFunc("/auth/otp/verify", a.verifyOTP).Methods(http.MethodPost)
	r.Handle("/ws", wsHandler)

	authed := r.NewRoute().Subrouter()
	authed.Use(issuer.Middleware)
	authed.HandleFunc("/keys/bundle", a.publishBundle).Methods(http.MethodPost)
	authed.HandleFunc("/keys/bundle/{userId}", a.fetchBundle).Methods(http.MethodGet)
	authed.HandleFunc("/keys/replenish", a.replenish).Methods(http.MethodPost)
	authed.HandleFunc("/keys/count", a.countKeys).Methods(http.MethodGet)
	authed.HandleFunc("/chats", a.createChat).Methods(http.MethodPost)
	authed.HandleFunc("/chats", a.listChats).Methods(http.MethodGet)
	authed.HandleFunc("/chats/{chatId}/messages", a.listMessages).Methods(http.MethodGet)
	authed.HandleFunc("/contacts/resolve", a.resolveContacts).Methods(http.MethodPost)
	authed.HandleFunc("/contacts", a.listContacts).Methods(http.MethodGet)
	return r
}

func (a *API) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		httpError(w, http.StatusBadRequest, "phone is required")
		return
	}
	if err := a.otp.RequestCode(r.Context(), req.Phone); err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "code sent"})
}

func (a *API) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" || req.Code == "" {
		httpError(w, http.StatusBadRequest, "phone and code are required")
		return
	}
	token, userID, err := a.otp.VerifyCode(r.Context(), req.Phone, req.Code)
	if errors.Is(err, auth.ErrBadCode) {
		httpError(w, http.StatusUnauthorized, "invalid code")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "userId": userID})
}

func (a *API) publishBundle(w http.ResponseWriter, r *http.Request) {
	var b domain.PreKeyBundle
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		httpError(w, http.StatusBadRequest, "malformed bundle")
		return
	}
	err := a.keys.Publish(r.Context(), auth.UserID(r.Context()), b)
	if errors.Is(err, domain.ErrInvalidBundleSignature) {
		httpError(w, http.StatusBadRequest, "signed prekey signature is invalid")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "bundle stored"})
}

func (a *API) fetchBundle(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	fb, err := a.keys.Fetch(r.Context(), userID)
	if errors.Is(err, domain.ErrBundleNotFound) {
		httpError(w, http.StatusNotFound, "no bundle for user")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (a *API) replenish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OneTimePreKeys []domain.OneTimePreKey `json:"oneTimePreKeys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.OneTimePreKeys) == 0 {
		httpError(w, http.StatusBadRequest, "oneTimePreKeys is required")
		return
	}
	total, err := a.keys.Replenish(r.Context(), auth.UserID(r.Context()), req.OneTimePreKeys)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "pool replenished",
		"totalOneTimeKeys": total,
	})
}

func (a *API) countKeys(w http.ResponseWriter, r *http.Request) {
	total, err := a.keys.Count(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"totalOneTimeKeys": total})
}

func (a *API) createChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		httpError(w, http.StatusBadRequest, "participantId is required")
		return
	}
	self := auth.UserID(r.Context())
	if req.ParticipantID == self {
		httpError(w, http.StatusBadRequest, "cannot chat with yourself")
		return
	}
	chat, err := a.store.EnsureChat(r.Context(), self, req.ParticipantID)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (a *API) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := a.store.ChatsForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// listMessages returns a chat's stored ciphertext rows, oldest first. Only
// the chat's participants may read them; everyone else sees a 404 so chat
// ids are not guessable by enumeration.
func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]
	chat, err := a.store.ChatByID(r.Context(), chatID)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	self := auth.UserID(r.Context())
	if chat == nil || !chat.Has(self) {
		httpError(w, http.StatusNotFound, "no such chat")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := a.store.MessagesForChat(r.Context(), chatID, limit)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// resolveContacts matches the caller's phone numbers against registered
// users and adds every match to the caller's contact book. Unregistered
// numbers are dropped from the response without being recorded.
func (a *API) resolveContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumbers []string `json:"phoneNumbers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.PhoneNumbers) == 0 {
		httpError(w, http.StatusBadRequest, "phoneNumbers is required")
		return
	}
	users, err := a.store.UsersByPhones(r.Context(), req.PhoneNumbers)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	self := auth.UserID(r.Context())
	out := []domain.ContactUser{}
	for _, u := range users {
		if u.ID == self {
			continue
		}
		if err := a.store.AddContact(r.Context(), self, u.ID); err != nil {
			a.serverError(w, r, err)
			return
		}
		out = append(out, contactUser(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listContacts(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ContactsForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	out := make([]domain.ContactUser, 0, len(users))
	for _, u := range users {
		out = append(out, contactUser(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func contactUser(u storage.User) domain.ContactUser {
	return domain.ContactUser{UserID: u.ID, Phone: u.Phone, IsOnline: u.IsOnline}
}

func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	httpError(w, http.StatusInternalServerError, "internal error")
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
