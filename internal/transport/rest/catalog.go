package rest

import (
	"net/http"

	"github.com/abgdnv/coinmarket/internal/service"
	"github.com/abgdnv/coinmarket/pkg/web"
)

func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.AccountCreateDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	account, err := h.catalog.RegisterAccount(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "register account", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusCreated, account)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	accountID, ok := web.PathParam(w, r, mLogger, "accountID")
	if !ok {
		return
	}
	account, err := h.catalog.GetAccount(r.Context(), accountID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "get account", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, account)
}

func (h *Handler) AddCoins(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	accountID, ok := web.PathParam(w, r, mLogger, "accountID")
	if !ok {
		return
	}
	var dto service.CoinsDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	account, err := h.catalog.AddCoins(r.Context(), accountID, dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "add coins", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, account)
}

func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.ShopCreateDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	shop, err := h.catalog.CreateShop(r.Context(), dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "create shop", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusCreated, shop)
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	shopID, ok := web.PathParam(w, r, mLogger, "shopID")
	if !ok {
		return
	}
	var dto service.ProductCreateDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	product, err := h.catalog.AddProduct(r.Context(), shopID, dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "add product", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	shopID, ok := web.PathParam(w, r, mLogger, "shopID")
	if !ok {
		return
	}
	name, ok := web.PathParam(w, r, mLogger, "productName")
	if !ok {
		return
	}
	var dto service.ProductUpdateDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &dto) {
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), shopID, name, dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, "update product", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, product)
}
